package token

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// TokenCmd groups bearer token diagnostics
var TokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Inspect and verify bearer tokens",
	Long:  `Diagnostics for the bearer tokens issued by POST /auth/login.`,
}

func init() {
	TokenCmd.AddCommand(inspectCmd)
	TokenCmd.AddCommand(verifyCmd)
}

// readToken takes the token from the first argument, or from stdin when the
// argument is "-" or absent. A leading "Bearer " is stripped.
func readToken(args []string) (string, error) {
	raw := ""
	if len(args) > 0 && args[0] != "-" {
		raw = args[0]
	} else {
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			raw = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
	}

	raw = strings.TrimSpace(raw)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		return "", fmt.Errorf("token is required (pass it as an argument or on stdin)")
	}
	return raw, nil
}
