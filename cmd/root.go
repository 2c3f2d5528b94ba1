package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppandrangi/crms/cmd/cmdutil"
	"github.com/ppandrangi/crms/cmd/token"
	"github.com/ppandrangi/crms/cmd/users"
	"github.com/ppandrangi/crms/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "crmsapi",
	Short: "Crime Record Management System API server",
	Long: `crmsapi serves the Crime Record Management System REST API.
Officers sign in with a badge id, file incidents and attach evidence records.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = cmdutil.LoadConfig(cmd)
		return err
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: DATABASE_URL)")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: SERVER_ADDR)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: DEBUG)")

	// Add subcommands
	rootCmd.AddCommand(users.UsersCmd)
	rootCmd.AddCommand(token.TokenCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
