package apps

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ssokit/ssoapi/cmd/cmdutil"
	"github.com/ssokit/ssoapi/internal/config"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered OAuth2 applications",
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

		list, err := bundle.Service.ListApplications(context.Background(), "")
		if err != nil {
			return fmt.Errorf("failed to list applications: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CLIENT ID\tNAME\tREDIRECT URIS\tDISABLED")
		for i := range list {
			app := &list[i]
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n",
				app.ClientID, app.Name, strings.Join(app.RedirectURIs, ", "), app.Disabled)
		}
		return w.Flush()
	},
}
