package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/ssokit/ssoapi/internal/db/models"
)

// BunRevocationRepository implements RevocationRepository using Bun ORM
type BunRevocationRepository struct {
	db *bun.DB
}

// NewBunRevocationRepository creates a new Bun-based revocation repository
func NewBunRevocationRepository(db *bun.DB) RevocationRepository {
	return &BunRevocationRepository{db: db}
}

// RevokeSession inserts the denylist row and bumps the user's session epoch
// inside one transaction. Partial application would let a stale refresh token
// mint a fresh access token after logout, so both writes commit together or
// not at all.
func (r *BunRevocationRepository) RevokeSession(ctx context.Context, userID string, rt *models.RevokedToken) error {
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if rt != nil {
			if _, err := tx.NewInsert().
				Model(rt).
				On("CONFLICT (jti) DO NOTHING").
				Exec(ctx); err != nil {
				return fmt.Errorf("insert revoked token: %w", err)
			}
		}

		result, err := tx.NewUpdate().
			Model((*models.User)(nil)).
			Set("session_epoch = session_epoch + 1").
			Set("updated_at = ?", time.Now()).
			Where("id = ?", userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("increment session epoch: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("user not found: %s", userID)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsRevoked checks if a JTI exists in the denylist.
// Uses SELECT EXISTS for an efficient boolean check.
func (r *BunRevocationRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.RevokedToken)(nil)).
		Where("jti = ?", jti).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return exists, nil
}

// DeleteExpired removes denylist rows where exp < now() - grace period.
// Used for periodic cleanup to prevent table bloat.
func (r *BunRevocationRepository) DeleteExpired(ctx context.Context, gracePeriod time.Duration) error {
	cutoffTime := time.Now().Add(-gracePeriod)

	_, err := r.db.NewDelete().
		Model((*models.RevokedToken)(nil)).
		Where("exp < ?", cutoffTime).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete expired revoked tokens: %w", err)
	}
	return nil
}
