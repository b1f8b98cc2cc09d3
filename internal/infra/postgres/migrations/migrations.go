package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the question pool schema, applied in file-name order.
var Migrations = migrate.NewMigrations()
