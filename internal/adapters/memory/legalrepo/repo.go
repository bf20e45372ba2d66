package legalrepo

import (
	"context"
	"sync"

	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/legalrepo"
)

type acceptanceKey struct {
	user domain.UserID
	term domain.LegalTermID
}

// Repo is an in-memory implementation of legalrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu          sync.RWMutex
	terms       map[domain.LegalTermID]legalrepo.Term
	acceptances map[acceptanceKey]legalrepo.Acceptance
}

func NewRepo() *Repo {
	return &Repo{
		terms:       make(map[domain.LegalTermID]legalrepo.Term),
		acceptances: make(map[acceptanceKey]legalrepo.Acceptance),
	}
}

// PutTerm stores a term, used by dev seeding and tests. Activating a term
// deactivates every other one: at most one term is active.
func (r *Repo) PutTerm(t legalrepo.Term) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Active {
		for id, other := range r.terms {
			other.Active = false
			r.terms[id] = other
		}
	}
	r.terms[t.ID] = t
}

func (r *Repo) ActiveTerm(ctx context.Context) (legalrepo.Term, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.terms {
		if t.Active {
			return t, nil
		}
	}
	return legalrepo.Term{}, legalrepo.ErrNoActiveTerm
}

func (r *Repo) LatestAcceptance(ctx context.Context, user domain.UserID, term domain.LegalTermID) (legalrepo.Acceptance, bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.acceptances[acceptanceKey{user: user, term: term}]
	return a, ok, nil
}

func (r *Repo) Accept(ctx context.Context, a legalrepo.Acceptance) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acceptances[acceptanceKey{user: a.UserID, term: a.TermID}] = a
	return nil
}
