package ratelimit

import (
	"context"
	"time"
)

// Store is a fixed-window counter keyed by an opaque bucket string.
//
// Incr atomically increments the bucket's counter for the window anchored at
// windowStart and returns the post-increment count. When windowStart differs
// from the bucket's stored window, the counter resets to 1 for the new window.
// The increment and the read must be one atomic operation so two concurrent
// callers can never both observe a pre-limit count.
type Store interface {
	Incr(ctx context.Context, bucket string, windowStart time.Time) (int, error)
}
