package apps

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssokit/ssoapi/cmd/cmdutil"
	"github.com/ssokit/ssoapi/internal/config"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <client-id>",
	Short: "Delete an OAuth2 application",
	Long: `Deletes an application by its client ID. Tokens already issued for it
keep working until they expire; new authorization flows fail immediately.`,
	Args: cobra.ExactArgs(1),
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

		ctx := context.Background()
		app, err := bundle.Service.GetApplicationByClientID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("application not found: %w", err)
		}

		if err := bundle.Service.DeleteApplication(ctx, app.ID); err != nil {
			return fmt.Errorf("failed to delete application: %w", err)
		}

		fmt.Printf("Application %s deleted\n", args[0])
		return nil
	},
}
