package users

import (
	"bufio"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ppandrangi/crms/cmd/cmdutil"
	"github.com/ppandrangi/crms/internal/apperr"
	"github.com/ppandrangi/crms/internal/services/iam"
)

var (
	badgeIDFlag  string
	nameFlag     string
	passwordFlag string
	stdinFlag    bool
	adminFlag    bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an officer account",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Validate required flags
		if badgeIDFlag == "" {
			return fmt.Errorf("--badge-id flag is required")
		}

		if nameFlag == "" {
			return fmt.Errorf("--name flag is required")
		}

		password := passwordFlag
		if stdinFlag {
			// Read password from stdin
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("Enter password: ")
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}

		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		cfg, err := cmdutil.LoadConfig(cmd)
		if err != nil {
			return err
		}

		bundle, err := cmdutil.NewIAMServiceBundle(cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		user, err := bundle.Service.CreateUser(cmd.Context(), iam.CreateUserInput{
			BadgeID:  badgeIDFlag,
			Name:     nameFlag,
			Password: password,
			IsAdmin:  adminFlag,
		})
		if err != nil {
			return describe(err)
		}

		pterm.Success.Println("User created successfully!")
		fmt.Println("----------------------------------------")
		fmt.Printf("User ID: %s\n", user.ID)
		fmt.Printf("Badge ID: %s\n", user.BadgeID)
		fmt.Printf("Name: %s\n", user.Name)
		fmt.Printf("Admin: %t\n", user.IsAdmin)
		fmt.Println("----------------------------------------")

		return nil
	},
}

// describe flattens a classified error into one line for the terminal.
func describe(err error) error {
	appErr := apperr.As(err)
	if appErr.Kind == apperr.KindInternal {
		return err
	}
	msg := appErr.Message
	for field, problems := range appErr.Fields {
		for _, problem := range problems {
			msg += fmt.Sprintf("\n  %s: %s", field, problem)
		}
	}
	return fmt.Errorf("%s", msg)
}
