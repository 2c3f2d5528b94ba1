package users

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ppandrangi/crms/cmd/cmdutil"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List officer accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cmdutil.LoadConfig(cmd)
		if err != nil {
			return err
		}

		bundle, err := cmdutil.NewIAMServiceBundle(cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		users, err := bundle.Service.ListUsers(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		if len(users) == 0 {
			pterm.Info.Println("No users found")
			return nil
		}

		table := pterm.TableData{{"BADGE_ID", "NAME", "ADMIN", "ID", "CREATED"}}
		for _, u := range users {
			table = append(table, []string{
				u.BadgeID,
				u.Name,
				strconv.FormatBool(u.IsAdmin),
				u.ID,
				u.CreatedAt.UTC().Format("2006-01-02 15:04"),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	},
}
