package userrepo

import (
	"context"
	"sync"

	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/userrepo"
)

// Repo is an in-memory implementation of userrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.UserID]domain.User
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.UserID]domain.User)}
}

// Put stores a user profile, used by dev seeding and tests.
func (r *Repo) Put(u domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = u
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, userrepo.ErrNotFound
	}
	return u, nil
}
