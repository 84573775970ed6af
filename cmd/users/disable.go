package users

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssokit/ssoapi/cmd/cmdutil"
	"github.com/ssokit/ssoapi/internal/config"
)

var disableCmd = &cobra.Command{
	Use:   "disable <user-id>",
	Short: "Disable a user account",
	Long: `Disables a user account. Every outstanding token for the user fails
verification on its next use; no restart or token expiry is needed.`,
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

		if err := bundle.Service.DisableUser(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to disable user: %w", err)
		}

		fmt.Printf("User %s disabled\n", args[0])
		return nil
	},
}
