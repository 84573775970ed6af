package repository_test

import (
	. "github.com/ssokit/ssoapi/internal/repository"

	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/ssokit/ssoapi/internal/db/bunx"
	"github.com/ssokit/ssoapi/internal/db/models"
	"github.com/ssokit/ssoapi/internal/migrations"
)

// setupTestDB opens an in-memory SQLite database and applies the full
// migration set. Each test gets its own isolated database.
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := bunx.NewDB("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	return db
}

func createTestUser(t *testing.T, repo UserRepository, username string) *models.User {
	t.Helper()

	now := time.Now()
	user := &models.User{
		ID:           bunx.NewUUIDv7(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$12$fixturehashfixturehashfixtureha",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}
