package cmdutil

import (
	"fmt"

	"github.com/uptrace/bun"

	"github.com/ssokit/ssoapi/internal/config"
	"github.com/ssokit/ssoapi/internal/db/bunx"
	"github.com/ssokit/ssoapi/internal/repository"
	"github.com/ssokit/ssoapi/internal/services/iam"
)

// IAMServiceBundle bundles the service with its underlying DB connection so
// callers can reuse the connection for other repositories when necessary.
type IAMServiceBundle struct {
	Service iam.Service
	DB      *bun.DB
}

// Close releases the underlying database connection.
func (b *IAMServiceBundle) Close() {
	if b == nil || b.DB == nil {
		return
	}
	_ = bunx.Close(b.DB)
}

// NewIAMServiceBundle centralizes IAM service construction for CLI commands.
// It wires repositories and returns a ready-to-use service.
func NewIAMServiceBundle(cfg *config.Config) (*IAMServiceBundle, error) {
	db, err := bunx.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	deps := iam.Dependencies{
		Users:        repository.NewBunUserRepository(db),
		Permissions:  repository.NewBunPermissionRepository(db),
		Revocations:  repository.NewBunRevocationRepository(db),
		Applications: repository.NewBunApplicationRepository(db),
		OAuthTokens:  repository.NewBunOAuthTokenRepository(db),
	}

	service, err := iam.NewService(deps, cfg)
	if err != nil {
		bunx.Close(db)
		return nil, fmt.Errorf("failed to initialize IAM service: %w", err)
	}

	return &IAMServiceBundle{Service: service, DB: db}, nil
}
