package pipeline

import (
	"context"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/app/apperr"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/auditlog"
)

// Payload is a decoded request body. Validate runs after JSON decoding and
// before any idempotency state transition is attempted.
type Payload interface {
	Validate() *apperr.Error
}

// Request is the per-call context owned by the pipeline. It lives only for
// the duration of one HTTP call and is never persisted.
type Request struct {
	ID        string
	Operation string
	Method    string

	// Origin is the resolved client origin, or the trusted-proxy sentinel
	// when it could not be determined.
	Origin    string
	UserAgent string
	StartedAt time.Time

	// Actor is set once the identity guard has passed.
	Actor *domain.User

	IdempotencyKey string
}

// Result is a successful business outcome. Audit, when set, is written
// best-effort after the response is finalized.
type Result struct {
	Status int // defaults to 200
	Data   any
	Audit  *auditlog.Entry
}

// RateLimit configures the durable fixed-window limiter for an operation.
// A zero Limit disables throttling for the operation.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// Operation describes one endpoint to the pipeline: which methods and roles
// it admits, whether it demands legal consent and an idempotency key, how to
// decode its payload, and the business function to run once every guard has
// passed.
//
// A nil Roles slice marks the operation public: the identity, role and
// consent guards are skipped entirely (used by health).
type Operation struct {
	Name    string
	Methods []string
	Roles   []domain.Role
	Consent bool

	Idempotent bool
	RateLimit  RateLimit

	// NewPayload returns a fresh payload value to decode the body into.
	// Nil means the operation takes no body.
	NewPayload func() Payload

	Execute func(ctx context.Context, req *Request, payload Payload) (Result, *apperr.Error)
}
