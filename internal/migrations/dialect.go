package migrations

import (
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// IsSQLite reports whether the migration target is SQLite. SQLite lacks
// JSONB indexing and some ALTER TABLE forms, so migrations branch on it.
func IsSQLite(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.SQLite
}

// IsPostgreSQL reports whether the migration target is PostgreSQL.
func IsPostgreSQL(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.PG
}
