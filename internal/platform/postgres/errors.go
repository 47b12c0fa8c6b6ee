// Package postgres contains the PostgreSQL-backed implementations of the
// application's storage interfaces.
package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
const (
	// uniqueViolationCode is the PostgreSQL error code for unique
	// constraint violations
	uniqueViolationCode = "23505"
)

// IsUniqueViolation checks if the given error is a PostgreSQL unique
// constraint violation. The idempotency store relies on this to detect a
// lost insert race on the primary key.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
