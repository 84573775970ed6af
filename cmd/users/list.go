package users

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ssokit/ssoapi/cmd/cmdutil"
	"github.com/ssokit/ssoapi/internal/config"
)

var filterFlag string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts",
	Long: `Lists user accounts. The --filter flag accepts a boolean expression
over the fields username, email, active, admin_user and create_applications:

    ssoapi users list --filter 'admin_user == true'
    ssoapi users list --filter 'active == false or create_applications == true'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		bundle, err := cmdutil.NewIAMServiceBundle(cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		list, err := bundle.Service.ListUsers(context.Background(), filterFlag)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tACTIVE")
		for i := range list {
			u := &list[i]
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", u.ID, u.Username, u.Email, u.Active())
		}
		return w.Flush()
	},
}
