package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssokit/ssoapi/cmd/apps"
	"github.com/ssokit/ssoapi/cmd/users"
	"github.com/ssokit/ssoapi/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ssoapi",
	Short: "Identity provider with epoch-stamped sessions and an embedded OIDC provider",
	Long: `ssoapi is a single-binary identity provider. It issues epoch-stamped
bearer tokens for first-party sessions, acts as an OpenID Connect provider
for registered applications, and exposes admin and self-service APIs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: DATABASE_URL)")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: SERVER_ADDR)")
	rootCmd.PersistentFlags().String("server-url", "", "Server base URL (env: SERVER_URL)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: DEBUG)")

	// Add subcommands
	rootCmd.AddCommand(users.UsersCmd)
	rootCmd.AddCommand(apps.AppsCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
