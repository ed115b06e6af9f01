package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func UsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Admin user commands (needs --token)",
	}

	cmd.AddCommand(usersListCmd())
	return cmd
}

func usersListCmd() *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := apiClient(cmd).ListUsers(cmd.Context(), page, pageSize)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tSTATUS")
			for _, u := range users.Users {
				name, role, status := "-", "-", "-"
				if u.Profile != nil {
					name, role, status = u.Profile.Name, u.Profile.Role, u.Profile.Status
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, name, role, status)
			}
			_ = tw.Flush()
			fmt.Printf("page %d of %d (%d users)\n", users.Page, users.TotalPages, users.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "users per page")
	return cmd
}
