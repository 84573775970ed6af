package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/ssokit/ssoapi/internal/db/models"
)

// BunOAuthTokenRepository implements OAuthTokenRepository using Bun ORM
type BunOAuthTokenRepository struct {
	db *bun.DB
}

// NewBunOAuthTokenRepository creates a new Bun-based OAuth token repository
func NewBunOAuthTokenRepository(db *bun.DB) *BunOAuthTokenRepository {
	return &BunOAuthTokenRepository{db: db}
}

// Create records an issued OAuth2 access token
func (r *BunOAuthTokenRepository) Create(ctx context.Context, token *models.OAuthToken) error {
	_, err := r.db.NewInsert().
		Model(token).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create oauth token: %w", err)
	}
	return nil
}

// GetByJTIHash retrieves a token record by the SHA256 hash of its jti claim
func (r *BunOAuthTokenRepository) GetByJTIHash(ctx context.Context, jtiHash string) (*models.OAuthToken, error) {
	token := new(models.OAuthToken)
	err := r.db.NewSelect().
		Model(token).
		Where("jti_hash = ?", jtiHash).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("oauth token not found")
		}
		return nil, fmt.Errorf("get oauth token: %w", err)
	}
	return token, nil
}

// Revoke marks a token record as revoked
func (r *BunOAuthTokenRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().
		Model((*models.OAuthToken)(nil)).
		Set("revoked = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke oauth token: %w", err)
	}
	return nil
}

// RevokeByUserID revokes every outstanding token for a user
func (r *BunOAuthTokenRepository) RevokeByUserID(ctx context.Context, userID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.OAuthToken)(nil)).
		Set("revoked = ?", true).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke oauth tokens for user: %w", err)
	}
	return nil
}

// DeleteExpired removes token records past their expiry plus a grace period
func (r *BunOAuthTokenRepository) DeleteExpired(ctx context.Context, gracePeriod time.Duration) error {
	cutoffTime := time.Now().Add(-gracePeriod)

	_, err := r.db.NewDelete().
		Model((*models.OAuthToken)(nil)).
		Where("expires_at < ?", cutoffTime).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete expired oauth tokens: %w", err)
	}
	return nil
}
