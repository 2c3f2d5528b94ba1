package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ppandrangi/crms/cmd/cmdutil"
	"github.com/ppandrangi/crms/internal/auth"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [token|-]",
	Short: "Verify a token against JWT_SECRET",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readToken(args)
		if err != nil {
			return err
		}

		cfg, err := cmdutil.LoadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.RequireSigningSecret(); err != nil {
			return err
		}

		claims, err := auth.NewTokenService(cfg.Auth.JWTSecret).VerifyClaims(raw)
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			return fmt.Errorf("token expired")
		case err != nil:
			return fmt.Errorf("token rejected: %w", err)
		}

		pterm.Success.Println("Token is valid")
		fmt.Printf("User ID: %s\n", claims.UserID)
		fmt.Printf("Badge ID: %s\n", claims.BadgeID)
		fmt.Printf("Admin: %t\n", claims.IsAdmin)
		if claims.ExpiresAt != nil {
			fmt.Printf("Expires: %s (in %s)\n",
				claims.ExpiresAt.UTC().Format(time.RFC3339),
				time.Until(claims.ExpiresAt.Time).Round(time.Second))
		}
		return nil
	},
}
