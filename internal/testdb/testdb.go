// Package testdb provides helpers for tests that need a real PostgreSQL
// instance. Tests using it are skipped unless a database URL is configured,
// so the default `go test ./...` run stays hermetic.
package testdb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/mwhitford/edgegate/internal/platform/postgres"
)

// setupTimeout bounds migration and connection setup for a test database.
const setupTimeout = 30 * time.Second

// URL returns the test database URL from the environment. DATABASE_URL is
// the conventional name; EDGEGATE_TEST_DB_URL works when the former is
// claimed by something else.
func URL() string {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u
	}
	return os.Getenv("EDGEGATE_TEST_DB_URL")
}

// Skip marks the test as skipped when no test database is configured.
func Skip(t *testing.T) {
	t.Helper()
	if URL() == "" {
		t.Skip("no test database configured, set DATABASE_URL to run")
	}
}

// Pool migrates the test database schema and returns a connection pool,
// closed automatically when the test finishes.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	Skip(t)

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	require.NoError(t, postgres.Migrate(ctx, URL()), "failed to migrate test database")

	pool, err := postgres.NewPool(ctx, URL())
	require.NoError(t, err, "failed to connect to test database")
	t.Cleanup(pool.Close)
	return pool
}

// Truncate empties the given tables so tests start from a known state.
func Truncate(t *testing.T, pool *pgxpool.Pool, tables ...string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	for _, table := range tables {
		_, err := pool.Exec(ctx, "TRUNCATE TABLE "+table)
		require.NoError(t, err, "failed to truncate table %s", table)
	}
}
