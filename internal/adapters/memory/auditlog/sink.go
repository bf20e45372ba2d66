package auditlog

import (
	"context"
	"sync"

	"github.com/turnotrack/shift-ops-api/internal/ports/out/auditlog"
)

// Sink is an in-memory implementation of auditlog.Sink.
// It is safe for concurrent use.
type Sink struct {
	mu      sync.Mutex
	entries []auditlog.Entry
}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Write(ctx context.Context, e auditlog.Entry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Entries returns a snapshot of everything written, in write order.
func (s *Sink) Entries() []auditlog.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auditlog.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
