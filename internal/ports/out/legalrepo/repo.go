package legalrepo

import (
	"context"
	"errors"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/domain"
)

var (
	// ErrNoActiveTerm indicates no legal-terms version is currently active.
	ErrNoActiveTerm = errors.New("no active legal term")
)

// Term is one versioned legal-terms document.
type Term struct {
	ID      domain.LegalTermID
	Code    string
	Title   string
	Version string
	Content string
	Active  bool
}

// Acceptance records that a user accepted a specific terms version.
// IPAddress is nil when the client origin could not be resolved.
type Acceptance struct {
	UserID     domain.UserID
	TermID     domain.LegalTermID
	AcceptedAt time.Time
	IPAddress  *string
	UserAgent  string
}

// Repository provides access to legal terms and user acceptances.
type Repository interface {
	// ActiveTerm returns the single currently-active terms version.
	ActiveTerm(ctx context.Context) (Term, error)

	// LatestAcceptance returns the user's most recent acceptance of the term,
	// with ok=false when none exists.
	LatestAcceptance(ctx context.Context, user domain.UserID, term domain.LegalTermID) (Acceptance, bool, error)

	// Accept upserts an acceptance on (user, term).
	Accept(ctx context.Context, a Acceptance) error
}
