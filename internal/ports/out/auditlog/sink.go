package auditlog

import (
	"context"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/domain"
)

// Entry is one audit record. Context carries operation-specific detail.
type Entry struct {
	UserID    domain.UserID
	Action    string
	Context   map[string]any
	RequestID string
	CreatedAt time.Time
}

// Sink accepts best-effort audit writes. Callers treat failures as
// non-fatal: they are logged and never surface to the client.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}
