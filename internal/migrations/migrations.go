// Package migrations holds the versioned schema migrations, applied via
// bun's migrate tooling from the db CLI commands.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the registry all migration files register into.
var Migrations = migrate.NewMigrations()
