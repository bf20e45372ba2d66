package incidentrepo

import (
	"context"
	"sync"

	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/incidentrepo"
)

// Repo is an in-memory implementation of incidentrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu     sync.RWMutex
	byID   map[domain.IncidentID]incidentrepo.Incident
	nextID domain.IncidentID
}

func NewRepo() *Repo {
	return &Repo{
		byID:   make(map[domain.IncidentID]incidentrepo.Incident),
		nextID: 1,
	}
}

func (r *Repo) Create(ctx context.Context, in incidentrepo.Incident) (domain.IncidentID, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	in.ID = r.nextID
	r.nextID++
	r.byID[in.ID] = in
	return in.ID, nil
}

func (r *Repo) ListByShift(ctx context.Context, shift domain.ShiftID) ([]incidentrepo.Incident, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []incidentrepo.Incident
	for id := domain.IncidentID(1); id < r.nextID; id++ {
		if in, ok := r.byID[id]; ok && in.ShiftID == shift {
			out = append(out, in)
		}
	}
	return out, nil
}
