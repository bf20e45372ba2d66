package auditlog

import (
	"testing"

	"github.com/turnotrack/shift-ops-api/internal/adapters/contracttest"
	"github.com/turnotrack/shift-ops-api/internal/adapters/postgres/testutil"
	auditlogport "github.com/turnotrack/shift-ops-api/internal/ports/out/auditlog"
)

func TestContract_PostgresAuditSink(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunAuditSink(t, func(t *testing.T) (auditlogport.Sink, func()) {
		t.Helper()
		return NewSink(pool), nil
	})
}
