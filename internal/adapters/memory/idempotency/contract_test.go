package idempotency

import (
	"testing"

	"github.com/turnotrack/shift-ops-api/internal/adapters/contracttest"
	idempotencyport "github.com/turnotrack/shift-ops-api/internal/ports/out/idempotency"
)

func TestContract_MemoryIdempotencyStore(t *testing.T) {
	contracttest.RunIdempotencyStore(t, func(t *testing.T) (idempotencyport.Store, func()) {
		t.Helper()
		return NewStore(), nil
	})
}
