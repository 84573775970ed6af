package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds all registered schema migrations.
// Each timestamped file registers itself via init().
var Migrations = migrate.NewMigrations()
