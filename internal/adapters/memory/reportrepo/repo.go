package reportrepo

import (
	"context"
	"sync"

	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/reportrepo"
)

// Repo is an in-memory implementation of reportrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu     sync.Mutex
	byID   map[domain.ReportID]reportrepo.Report
	nextID domain.ReportID
}

func NewRepo() *Repo {
	return &Repo{
		byID:   make(map[domain.ReportID]reportrepo.Report),
		nextID: 1,
	}
}

func (r *Repo) Create(ctx context.Context, rep reportrepo.Report) (domain.ReportID, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	rep.ID = r.nextID
	r.nextID++
	r.byID[rep.ID] = rep
	return rep.ID, nil
}
