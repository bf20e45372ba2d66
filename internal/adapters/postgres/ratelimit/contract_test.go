package ratelimit

import (
	"testing"

	"github.com/turnotrack/shift-ops-api/internal/adapters/contracttest"
	"github.com/turnotrack/shift-ops-api/internal/adapters/postgres/testutil"
	ratelimitport "github.com/turnotrack/shift-ops-api/internal/ports/out/ratelimit"
)

func TestContract_PostgresRateLimitStore(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunRateLimitStore(t, func(t *testing.T) (ratelimitport.Store, func()) {
		t.Helper()
		return NewStore(pool), nil
	})
}
