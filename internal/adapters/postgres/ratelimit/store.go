package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a Postgres implementation of ratelimit.Store.
//
// One upsert both advances the window and increments the counter, returning
// the post-increment count: the row's window is reset when the caller's
// window boundary has moved past the stored one.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Incr(ctx context.Context, bucket string, windowStart time.Time) (int, error) {
	if s.pool == nil {
		return 0, errors.New("nil postgres pool")
	}

	var count int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rate_limit_buckets (bucket, window_start, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (bucket) DO UPDATE
		SET count = CASE
				WHEN rate_limit_buckets.window_start = EXCLUDED.window_start
				THEN rate_limit_buckets.count + 1
				ELSE 1
			END,
			window_start = EXCLUDED.window_start
		RETURNING count
	`, bucket, windowStart.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("rate limit incr: %w", err)
	}
	return count, nil
}
