package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/ssokit/ssoapi/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260312000000, down_20260312000000)
}

// up_20260312000000 creates the identity schema: permissions, users,
// revoked_tokens, applications, oauth_tokens.
func up_20260312000000(ctx context.Context, db *bun.DB) error {
	// 1. permissions first: users carry the FK
	fmt.Print(" [up] creating permissions table...")
	_, err := db.NewCreateTable().
		Model((*models.Permission)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create permissions table: %w", err)
	}
	fmt.Println(" OK")

	// 2. users
	fmt.Print(" [up] creating users table...")
	_, err = db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(username)`)
	if err != nil {
		return fmt.Errorf("failed to create users username index: %w", err)
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email)`)
	if err != nil {
		return fmt.Errorf("failed to create users email index: %w", err)
	}

	if IsPostgreSQL(db) {
		// Referential protection: a permission row cannot be deleted while a
		// user still points at it (RESTRICT, not CASCADE). SQLite cannot add
		// constraints after table creation; the repository enforces the same
		// rule in both dialects.
		_, err = db.Exec(`
			ALTER TABLE users
			ADD CONSTRAINT fk_users_permission_id
			FOREIGN KEY (permission_id) REFERENCES permissions(id) ON DELETE RESTRICT
		`)
		if err != nil {
			return fmt.Errorf("failed to add users permission_id FK: %w", err)
		}
	}
	fmt.Println(" OK")

	// 3. revoked_tokens
	fmt.Print(" [up] creating revoked_tokens table...")
	_, err = db.NewCreateTable().
		Model((*models.RevokedToken)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create revoked_tokens table: %w", err)
	}

	// Index on exp for cleanup queries
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_revoked_tokens_exp ON revoked_tokens(exp)`)
	if err != nil {
		return fmt.Errorf("failed to create revoked_tokens exp index: %w", err)
	}
	fmt.Println(" OK")

	// 4. applications
	fmt.Print(" [up] creating applications table...")
	_, err = db.NewCreateTable().
		Model((*models.Application)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create applications table: %w", err)
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_client_id ON applications(client_id)`)
	if err != nil {
		return fmt.Errorf("failed to create applications client_id index: %w", err)
	}

	if IsPostgreSQL(db) {
		_, err = db.Exec(`
			ALTER TABLE applications
			ADD CONSTRAINT fk_applications_created_by
			FOREIGN KEY (created_by) REFERENCES users(id)
		`)
		if err != nil {
			return fmt.Errorf("failed to add applications created_by FK: %w", err)
		}
	}
	fmt.Println(" OK")

	// 5. oauth_tokens
	fmt.Print(" [up] creating oauth_tokens table...")
	_, err = db.NewCreateTable().
		Model((*models.OAuthToken)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create oauth_tokens table: %w", err)
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_oauth_tokens_jti_hash ON oauth_tokens(jti_hash)`)
	if err != nil {
		return fmt.Errorf("failed to create oauth_tokens jti_hash index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_oauth_tokens_expires_at ON oauth_tokens(expires_at)`)
	if err != nil {
		return fmt.Errorf("failed to create oauth_tokens expires_at index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20260312000000 drops the identity schema in reverse dependency order.
func down_20260312000000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping identity tables...")

	for _, model := range []any{
		(*models.OAuthToken)(nil),
		(*models.Application)(nil),
		(*models.RevokedToken)(nil),
		(*models.User)(nil),
		(*models.Permission)(nil),
	} {
		_, err := db.NewDropTable().
			Model(model).
			IfExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	fmt.Println(" OK")

	return nil
}
