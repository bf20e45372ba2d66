package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/ports/out/ratelimit"
)

type window struct {
	start time.Time
	count int
}

// Store is an in-memory implementation of ratelimit.Store.
// It is safe for concurrent use: increment and read happen under one lock.
type Store struct {
	mu      sync.Mutex
	buckets map[string]window
}

var _ ratelimit.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{buckets: make(map[string]window)}
}

func (s *Store) Incr(ctx context.Context, bucket string, windowStart time.Time) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.buckets[bucket]
	if !ok || !w.start.Equal(windowStart) {
		w = window{start: windowStart}
	}
	w.count++
	s.buckets[bucket] = w
	return w.count, nil
}
