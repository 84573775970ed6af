package apps

import "github.com/spf13/cobra"

// AppsCmd is the parent command for OAuth2 application management
var AppsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage OAuth2 client applications",
	Long:  `Commands for registering and inspecting OAuth2 client applications.`,
}

func init() {
	createCmd.Flags().StringSliceVar(&redirectURIsFlag, "redirect-uri", []string{}, "Allowed redirect URI (repeatable, required)")
	createCmd.Flags().StringVar(&createdByFlag, "created-by", "", "User ID recorded as the application owner (required)")

	AppsCmd.AddCommand(createCmd)
	AppsCmd.AddCommand(listCmd)
	AppsCmd.AddCommand(deleteCmd)
}
