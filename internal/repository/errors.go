package repository

import (
	"errors"
	"strings"

	"github.com/uptrace/bun/driver/pgdriver"
)

// ErrNotFound is returned when a requested record does not exist. Callers
// match it with errors.Is to distinguish a miss from an infrastructure
// failure.
var ErrNotFound = errors.New("not found")

// IsUniqueViolation reports whether err is the backing store rejecting a
// duplicate key. The store's uniqueness constraint is the single arbiter of
// "first creator wins" for concurrent get-or-create, so this check must
// recognize both supported engines.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	// PostgreSQL: SQLSTATE 23505 (unique_violation)
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}

	// SQLite (modernc driver): constraint errors surface as plain strings
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
