package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/ssokit/ssoapi/internal/auth"
	"github.com/ssokit/ssoapi/internal/db/bunx"
	"github.com/ssokit/ssoapi/internal/repository"
	"github.com/ssokit/ssoapi/internal/server"
	"github.com/ssokit/ssoapi/internal/services/iam"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the identity provider server",
	Long:  `Starts the HTTP server with the session API, OIDC provider, settings API, and admin endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Connect to database
		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		log.Printf("Connected to database")

		// Initialize repositories
		userRepo := repository.NewBunUserRepository(db)
		permissionRepo := repository.NewBunPermissionRepository(db)
		revocationRepo := repository.NewBunRevocationRepository(db)
		applicationRepo := repository.NewBunApplicationRepository(db)
		oauthTokenRepo := repository.NewBunOAuthTokenRepository(db)

		// Initialize the IAM service with both authenticators.
		iamService, err := iam.NewService(iam.Dependencies{
			Users:        userRepo,
			Permissions:  permissionRepo,
			Revocations:  revocationRepo,
			Applications: applicationRepo,
			OAuthTokens:  oauthTokenRepo,
		}, cfg)
		if err != nil {
			return fmt.Errorf("create IAM service: %w", err)
		}
		log.Printf("IAM service initialized with authenticators")

		// Embedded OIDC provider.
		var provider *auth.Provider
		if cfg.OIDC.Issuer != "" {
			provider, err = auth.NewOIDCProvider(cmd.Context(), cfg.OIDC, auth.ProviderDependencies{
				IAM:          iamService,
				Users:        userRepo,
				Applications: applicationRepo,
				OAuthTokens:  oauthTokenRepo,
			})
			if err != nil && !errors.Is(err, auth.ErrOIDCDisabled) {
				return fmt.Errorf("configure oidc provider: %w", err)
			}
			if err == nil {
				log.Printf("OIDC provider mounted (issuer %s)", cfg.OIDC.Issuer)
			}
		}

		healthHandler := func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"ok","oidc_enabled":%t}`, provider != nil)
		}

		// Assemble the shared router with the production-specific middleware.
		r := server.NewRouter(server.RouterOptions{
			IAMService:    iamService,
			Provider:      provider,
			HealthHandler: healthHandler,
		})

		// Wrap router with h2c for HTTP/2 cleartext support
		h2cHandler := h2c.NewHandler(r, &http2.Server{})

		// Create HTTP server
		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      h2cHandler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Start server in goroutine
		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s", cfg.ServerAddr)
			log.Printf("Server URL: %s", cfg.ServerURL)
			serverErrors <- srv.ListenAndServe()
		}()

		// Wait for interrupt signal
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Printf("Received signal %v, shutting down gracefully", sig)

			// Graceful shutdown with timeout
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Printf("Server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
