package ratelimit

import (
	"testing"

	"github.com/turnotrack/shift-ops-api/internal/adapters/contracttest"
	ratelimitport "github.com/turnotrack/shift-ops-api/internal/ports/out/ratelimit"
)

func TestContract_MemoryRateLimitStore(t *testing.T) {
	contracttest.RunRateLimitStore(t, func(t *testing.T) (ratelimitport.Store, func()) {
		t.Helper()
		return NewStore(), nil
	})
}
