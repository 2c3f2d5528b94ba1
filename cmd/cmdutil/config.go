package cmdutil

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppandrangi/crms/internal/config"
)

// LoadConfig reads the environment configuration and applies the global
// --db-url, --server-addr and --debug flags on top of it when set.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db-url") {
		if cfg.DatabaseURL, err = flags.GetString("db-url"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("server-addr") {
		if cfg.ServerAddr, err = flags.GetString("server-addr"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("debug") {
		if cfg.Debug, err = flags.GetBool("debug"); err != nil {
			return nil, err
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL must not be empty")
	}
	return cfg, nil
}
