package siterepo

import (
	"context"
	"sync"

	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/siterepo"
)

type assignment struct {
	supervisor domain.UserID
	site       domain.SiteID
}

// Repo is an in-memory implementation of siterepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu          sync.RWMutex
	byID        map[domain.SiteID]siterepo.Site
	assignments map[assignment]struct{}
}

func NewRepo() *Repo {
	return &Repo{
		byID:        make(map[domain.SiteID]siterepo.Site),
		assignments: make(map[assignment]struct{}),
	}
}

// Put stores a site, used by dev seeding and tests.
func (r *Repo) Put(s siterepo.Site) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.ID] = s
}

// Assign records a supervisor's assignment to a site.
func (r *Repo) Assign(supervisor domain.UserID, site domain.SiteID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments[assignment{supervisor: supervisor, site: site}] = struct{}{}
}

func (r *Repo) GetByID(ctx context.Context, id domain.SiteID) (siterepo.Site, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return siterepo.Site{}, siterepo.ErrNotFound
	}
	return s, nil
}

func (r *Repo) SupervisorHasSite(ctx context.Context, supervisor domain.UserID, site domain.SiteID) (bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.assignments[assignment{supervisor: supervisor, site: site}]
	return ok, nil
}
