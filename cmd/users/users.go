package users

import "github.com/spf13/cobra"

// UsersCmd is the parent command for officer account management
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage officer accounts",
	Long:  `Commands for managing officer accounts directly against the database. Admin accounts can only be created here.`,
}

func init() {
	createCmd.Flags().StringVar(&badgeIDFlag, "badge-id", "", "Badge id the officer signs in with")
	createCmd.Flags().StringVar(&nameFlag, "name", "", "Display name of the officer")
	createCmd.Flags().StringVar(&passwordFlag, "password", "", "Password for the officer (use --stdin to avoid shell history)")
	createCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read password from stdin instead of --password flag")
	createCmd.Flags().BoolVar(&adminFlag, "admin", false, "Grant administrator rights")

	UsersCmd.AddCommand(createCmd)
	UsersCmd.AddCommand(listCmd)
}
