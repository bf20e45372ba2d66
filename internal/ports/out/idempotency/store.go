package idempotency

import (
	"context"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/domain"
)

// Identity names an idempotency record: one caller, one operation, one
// client-supplied key.
type Identity struct {
	UserID    domain.UserID
	Operation string
	Key       string
}

type State string

const (
	// StateProcessing marks a claimed record whose outcome is not recorded yet.
	StateProcessing State = "processing"
	// StateCompleted marks a finalized record; its stored response is immutable.
	StateCompleted State = "completed"
)

// Record is the stored state for one idempotent request.
type Record struct {
	Fingerprint string
	State       State
	StatusCode  int
	Body        []byte
	CreatedAt   time.Time
}

type Outcome string

const (
	// OutcomeClaimed means the caller now owns processing and must finalize.
	OutcomeClaimed Outcome = "claimed"
	// OutcomeReplay means an identical request already completed; Stored holds
	// the response to return verbatim.
	OutcomeReplay Outcome = "replay"
	// OutcomeProcessing means another request with the same identity is mid-flight.
	OutcomeProcessing Outcome = "processing"
	// OutcomePayloadConflict means the key was reused with a different payload.
	OutcomePayloadConflict Outcome = "payload_conflict"
)

type Claim struct {
	Outcome Outcome
	Stored  Record
}

// Store persists idempotency records.
//
// Claim must be atomic against concurrent callers with the same identity:
// exactly one concurrent caller observes OutcomeClaimed. Implementations must
// use a single atomic insert (unique-constraint insert or equivalent), never
// separate read-then-write steps.
type Store interface {
	Claim(ctx context.Context, id Identity, fingerprint string) (Claim, error)

	// Finalize transitions the identity's record from processing to completed,
	// recording the exact status and body future duplicates will replay.
	// A completed record is never modified again.
	Finalize(ctx context.Context, id Identity, statusCode int, body []byte) error
}
