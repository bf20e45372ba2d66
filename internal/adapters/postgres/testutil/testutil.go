package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/turnotrack/shift-ops-api/internal/adapters/postgres"
)

// OpenMigratedPool connects to the database named by TEST_DATABASE_URL,
// applies the schema, and truncates all tables so each test starts clean.
// Tests are skipped when the variable is unset.
func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres contract tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, url)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE audit_log, rate_limit_buckets, idempotency_records,
			legal_acceptances, legal_terms, supply_deliveries, reports,
			incidents, shift_photos, shifts, supervisor_sites, sites, users
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}
