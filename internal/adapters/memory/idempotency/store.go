package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/ports/out/idempotency"
)

// Store is an in-memory implementation of idempotency.Store.
// It is safe for concurrent use: the single mutex makes Claim atomic.
type Store struct {
	mu      sync.Mutex
	records map[idempotency.Identity]idempotency.Record
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		records: make(map[idempotency.Identity]idempotency.Record),
		now:     time.Now,
	}
}

// NewStoreWithNow builds a store with a controllable time source for tests.
func NewStoreWithNow(now func() time.Time) *Store {
	s := NewStore()
	s.now = now
	return s
}

func (s *Store) Claim(ctx context.Context, id idempotency.Identity, fingerprint string) (idempotency.Claim, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		s.records[id] = idempotency.Record{
			Fingerprint: fingerprint,
			State:       idempotency.StateProcessing,
			CreatedAt:   s.now(),
		}
		return idempotency.Claim{Outcome: idempotency.OutcomeClaimed}, nil
	}

	if rec.Fingerprint != fingerprint {
		return idempotency.Claim{Outcome: idempotency.OutcomePayloadConflict, Stored: cloneRecord(rec)}, nil
	}
	if rec.State == idempotency.StateProcessing {
		return idempotency.Claim{Outcome: idempotency.OutcomeProcessing, Stored: cloneRecord(rec)}, nil
	}
	return idempotency.Claim{Outcome: idempotency.OutcomeReplay, Stored: cloneRecord(rec)}, nil
}

func (s *Store) Finalize(ctx context.Context, id idempotency.Identity, statusCode int, body []byte) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("finalize without claim: %s/%s", id.UserID, id.Operation)
	}
	if rec.State == idempotency.StateCompleted {
		return fmt.Errorf("record already completed: %s/%s", id.UserID, id.Operation)
	}
	rec.State = idempotency.StateCompleted
	rec.StatusCode = statusCode
	rec.Body = append([]byte(nil), body...)
	s.records[id] = rec
	return nil
}

func cloneRecord(rec idempotency.Record) idempotency.Record {
	out := rec
	out.Body = append([]byte(nil), rec.Body...)
	return out
}
