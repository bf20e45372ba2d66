package supplyrepo

import (
	"context"
	"sync"

	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/supplyrepo"
)

// Repo is an in-memory implementation of supplyrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu     sync.Mutex
	byID   map[domain.DeliveryID]supplyrepo.Delivery
	nextID domain.DeliveryID
}

func NewRepo() *Repo {
	return &Repo{
		byID:   make(map[domain.DeliveryID]supplyrepo.Delivery),
		nextID: 1,
	}
}

func (r *Repo) Create(ctx context.Context, d supplyrepo.Delivery) (domain.DeliveryID, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ID = r.nextID
	r.nextID++
	r.byID[d.ID] = d
	return d.ID, nil
}
