package users

import (
	"bufio"
	"context"
	"fmt"
	"net/mail"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssokit/ssoapi/cmd/cmdutil"
	"github.com/ssokit/ssoapi/internal/config"
)

var (
	emailFlag      string
	usernameFlag   string
	passwordFlag   string
	adminFlag      bool
	createAppsFlag bool
	stdinFlag      bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user account",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Validate required flags
		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}

		if usernameFlag == "" {
			return fmt.Errorf("--username flag is required")
		}

		password := passwordFlag
		if stdinFlag {
			// Read password from stdin
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("Enter password: ")
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}

		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		// Validate email format
		if _, err := mail.ParseAddress(emailFlag); err != nil {
			return fmt.Errorf("invalid email format: %w", err)
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

		user, err := bundle.Service.CreateUser(context.Background(), usernameFlag, emailFlag, password, adminFlag, createAppsFlag)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Println("User created successfully!")
		fmt.Println("----------------------------------------")
		fmt.Printf("User ID: %s\n", user.ID)
		fmt.Printf("Username: %s\n", user.Username)
		fmt.Printf("Email: %s\n", user.Email)
		fmt.Printf("Admin: %t\n", adminFlag)
		fmt.Printf("Can create applications: %t\n", createAppsFlag)
		fmt.Println("----------------------------------------")

		return nil
	},
}
