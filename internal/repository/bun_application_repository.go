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

// BunApplicationRepository implements ApplicationRepository using Bun ORM
type BunApplicationRepository struct {
	db *bun.DB
}

// NewBunApplicationRepository creates a new Bun-based application repository
func NewBunApplicationRepository(db *bun.DB) *BunApplicationRepository {
	return &BunApplicationRepository{db: db}
}

// Create inserts a new OAuth2 application
func (r *BunApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	_, err := r.db.NewInsert().
		Model(app).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// GetByID retrieves an application by its internal ID
func (r *BunApplicationRepository) GetByID(ctx context.Context, id string) (*models.Application, error) {
	app := new(models.Application)
	err := r.db.NewSelect().
		Model(app).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("application not found: %s", id)
		}
		return nil, fmt.Errorf("get application by ID: %w", err)
	}
	return app, nil
}

// GetByClientID retrieves an application by its OAuth2 client ID
func (r *BunApplicationRepository) GetByClientID(ctx context.Context, clientID string) (*models.Application, error) {
	app := new(models.Application)
	err := r.db.NewSelect().
		Model(app).
		Where("client_id = ?", clientID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("application not found with client_id: %s", clientID)
		}
		return nil, fmt.Errorf("get application by client_id: %w", err)
	}
	return app, nil
}

// Update updates an existing application
func (r *BunApplicationRepository) Update(ctx context.Context, app *models.Application) error {
	app.UpdatedAt = time.Now()
	result, err := r.db.NewUpdate().
		Model(app).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("application not found: %s", app.ID)
	}

	return nil
}

// Delete removes an application
func (r *BunApplicationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.NewDelete().
		Model((*models.Application)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("application not found: %s", id)
	}

	return nil
}

// List retrieves all applications
func (r *BunApplicationRepository) List(ctx context.Context) ([]models.Application, error) {
	var apps []models.Application
	err := r.db.NewSelect().
		Model(&apps).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// ListByCreator retrieves all applications registered by a given user
func (r *BunApplicationRepository) ListByCreator(ctx context.Context, userID string) ([]models.Application, error) {
	var apps []models.Application
	err := r.db.NewSelect().
		Model(&apps).
		Where("created_by = ?", userID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applications by creator: %w", err)
	}
	return apps, nil
}
