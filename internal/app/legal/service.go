package legal

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/app/apperr"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/clock"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/legalrepo"
)

// Service handles legal terms consent: reading the caller's status against
// the active terms version and recording acceptances.
type Service struct {
	legal legalrepo.Repository
	clock clock.Clock
}

func New(legal legalrepo.Repository, clk clock.Clock) *Service {
	return &Service{legal: legal, clock: clk}
}

type TermView struct {
	ID      domain.LegalTermID `json:"id"`
	Code    string             `json:"code"`
	Title   string             `json:"title"`
	Version string             `json:"version"`
	Content string             `json:"content"`
}

type StatusResult struct {
	Term       TermView   `json:"term"`
	Accepted   bool       `json:"accepted"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

// Status reports whether the caller has accepted the active terms version.
func (s *Service) Status(ctx context.Context, user domain.UserID) (StatusResult, *apperr.Error) {
	term, ae := s.activeTerm(ctx)
	if ae != nil {
		return StatusResult{}, ae
	}
	acc, ok, err := s.legal.LatestAcceptance(ctx, user, term.ID)
	if err != nil {
		return StatusResult{}, apperr.System("consent lookup failed", err)
	}
	out := StatusResult{Term: termView(term), Accepted: ok}
	if ok {
		at := acc.AcceptedAt
		out.AcceptedAt = &at
	}
	return out, nil
}

type AcceptInput struct {
	// TermID optionally pins the version the client saw. A pin that no longer
	// matches the active term is rejected so stale consent is never recorded.
	TermID *domain.LegalTermID

	IPAddress *string
	UserAgent string
}

type AcceptResult struct {
	TermID     domain.LegalTermID `json:"term_id"`
	Version    string             `json:"version"`
	AcceptedAt time.Time          `json:"accepted_at"`
}

// Accept records the caller's acceptance of the active terms version.
// Accepting an already-accepted term refreshes the acceptance timestamp.
func (s *Service) Accept(ctx context.Context, user domain.UserID, in AcceptInput) (AcceptResult, *apperr.Error) {
	term, ae := s.activeTerm(ctx)
	if ae != nil {
		return AcceptResult{}, ae
	}
	if in.TermID != nil && *in.TermID != term.ID {
		return AcceptResult{}, apperr.Business(http.StatusConflict, "terms version has changed").
			WithDetails(map[string]any{"active_term_id": term.ID, "active_version": term.Version})
	}

	now := s.clock.Now()
	err := s.legal.Accept(ctx, legalrepo.Acceptance{
		UserID:     user,
		TermID:     term.ID,
		AcceptedAt: now,
		IPAddress:  in.IPAddress,
		UserAgent:  in.UserAgent,
	})
	if err != nil {
		return AcceptResult{}, apperr.System("consent record failed", err)
	}
	return AcceptResult{TermID: term.ID, Version: term.Version, AcceptedAt: now}, nil
}

func (s *Service) activeTerm(ctx context.Context) (legalrepo.Term, *apperr.Error) {
	term, err := s.legal.ActiveTerm(ctx)
	if err != nil {
		if errors.Is(err, legalrepo.ErrNoActiveTerm) {
			return legalrepo.Term{}, apperr.New(http.StatusServiceUnavailable, apperr.CategorySystem, "legal terms unavailable")
		}
		return legalrepo.Term{}, apperr.System("legal term lookup failed", err)
	}
	return term, nil
}

func termView(t legalrepo.Term) TermView {
	return TermView{ID: t.ID, Code: t.Code, Title: t.Title, Version: t.Version, Content: t.Content}
}
