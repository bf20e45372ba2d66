package auditlog

import (
	"context"
	"testing"

	"github.com/turnotrack/shift-ops-api/internal/adapters/contracttest"
	auditlogport "github.com/turnotrack/shift-ops-api/internal/ports/out/auditlog"
)

func TestContract_MemoryAuditSink(t *testing.T) {
	contracttest.RunAuditSink(t, func(t *testing.T) (auditlogport.Sink, func()) {
		t.Helper()
		return NewSink(), nil
	})
}

func TestEntriesSnapshot(t *testing.T) {
	s := NewSink()
	if err := s.Write(context.Background(), auditlogport.Entry{UserID: "u", Action: "SHIFT_END", RequestID: "r"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := s.Entries()
	if len(got) != 1 || got[0].Action != "SHIFT_END" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}
