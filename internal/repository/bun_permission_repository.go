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

// BunPermissionRepository implements PermissionRepository using Bun ORM
type BunPermissionRepository struct {
	db *bun.DB
}

// NewBunPermissionRepository creates a new Bun-based permission repository
func NewBunPermissionRepository(db *bun.DB) *BunPermissionRepository {
	return &BunPermissionRepository{db: db}
}

// Create inserts a new permission record
func (r *BunPermissionRepository) Create(ctx context.Context, permission *models.Permission) error {
	_, err := r.db.NewInsert().
		Model(permission).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create permission: %w", err)
	}
	return nil
}

// GetByID retrieves a permission record by its ID
func (r *BunPermissionRepository) GetByID(ctx context.Context, id string) (*models.Permission, error) {
	permission := new(models.Permission)
	err := r.db.NewSelect().
		Model(permission).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("permission not found: %s", id)
		}
		return nil, fmt.Errorf("get permission: %w", err)
	}
	return permission, nil
}

// Update updates a permission record's flags
func (r *BunPermissionRepository) Update(ctx context.Context, permission *models.Permission) error {
	permission.UpdatedAt = time.Now()
	result, err := r.db.NewUpdate().
		Model(permission).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update permission: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("permission not found: %s", permission.ID)
	}

	return nil
}

// Delete removes a permission record. Deletion is refused while a user still
// references the record; the database FK enforces the same on PostgreSQL,
// but SQLite lacks the constraint so the check lives here for both dialects.
func (r *BunPermissionRepository) Delete(ctx context.Context, id string) error {
	referenced, err := r.db.NewSelect().
		Model((*models.User)(nil)).
		Where("permission_id = ?", id).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("check permission references: %w", err)
	}
	if referenced {
		return fmt.Errorf("permission %s is still referenced by a user", id)
	}

	_, err = r.db.NewDelete().
		Model((*models.Permission)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}
	return nil
}
