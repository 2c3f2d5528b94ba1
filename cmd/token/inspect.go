package token

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ppandrangi/crms/internal/auth"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [token|-]",
	Short: "Decode a token without checking its signature",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readToken(args)
		if err != nil {
			return err
		}

		claims, err := auth.PeekClaims(raw)
		if err != nil {
			return fmt.Errorf("failed to decode token: %w", err)
		}

		pterm.Warning.Println("Signature NOT verified. Use 'token verify' to check it.")
		fmt.Printf("User ID: %s\n", claims.UserID)
		fmt.Printf("Badge ID: %s\n", claims.BadgeID)
		fmt.Printf("Admin: %t\n", claims.IsAdmin)
		printTime("Issued", claims.IssuedAt)
		printTime("Expires", claims.ExpiresAt)
		return nil
	},
}

func printTime(label string, t *time.Time) {
	if t == nil {
		fmt.Printf("%s: -\n", label)
		return
	}
	fmt.Printf("%s: %s\n", label, t.UTC().Format(time.RFC3339))
}
