package apps

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssokit/ssoapi/cmd/cmdutil"
	"github.com/ssokit/ssoapi/internal/config"
)

var (
	redirectURIsFlag []string
	createdByFlag    string
)

var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Register a new OAuth2 application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		if len(redirectURIsFlag) == 0 {
			return fmt.Errorf("at least one redirect URI must be specified using --redirect-uri")
		}
		if createdByFlag == "" {
			return fmt.Errorf("--created-by flag is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		bundle, err := cmdutil.NewIAMServiceBundle(cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		app, clientSecret, err := bundle.Service.CreateApplication(context.Background(), name, redirectURIsFlag, createdByFlag)
		if err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}

		fmt.Println("Application created successfully!")
		fmt.Println("----------------------------------------")
		fmt.Printf("Client ID: %s\n", app.ClientID)
		fmt.Printf("Client Secret: %s\n", clientSecret)
		fmt.Println("----------------------------------------")
		fmt.Println("Save the client secret securely. It will not be shown again.")

		return nil
	},
}
