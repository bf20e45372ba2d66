package shiftrepo

import (
	"context"
	"sync"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/shiftrepo"
)

type photoKey struct {
	shift domain.ShiftID
	typ   domain.PhotoType
}

// Repo is an in-memory implementation of shiftrepo.Repository.
// It is safe for concurrent use; the guarded transitions are atomic under
// the repo mutex, matching the SQL adapters' conditional updates.
type Repo struct {
	mu     sync.RWMutex
	byID   map[domain.ShiftID]shiftrepo.Shift
	photos map[photoKey]shiftrepo.Photo
	nextID domain.ShiftID
}

func NewRepo() *Repo {
	return &Repo{
		byID:   make(map[domain.ShiftID]shiftrepo.Shift),
		photos: make(map[photoKey]shiftrepo.Photo),
		nextID: 1,
	}
}

func (r *Repo) Create(ctx context.Context, s shiftrepo.Shift) (domain.ShiftID, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = r.nextID
	r.nextID++
	r.byID[s.ID] = s
	return s.ID, nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.ShiftID) (shiftrepo.Shift, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return shiftrepo.Shift{}, shiftrepo.ErrNotFound
	}
	return s, nil
}

func (r *Repo) End(ctx context.Context, id domain.ShiftID, employee domain.UserID, at time.Time, lat, lng float64) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok || s.EmployeeID != employee || s.State != domain.ShiftActive {
		return false, nil
	}
	s.State = domain.ShiftFinalized
	s.EndAt = &at
	s.EndLat = &lat
	s.EndLng = &lng
	s.UpdatedAt = at
	r.byID[id] = s
	return true, nil
}

func (r *Repo) Approve(ctx context.Context, id domain.ShiftID, approver domain.UserID, at time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok || s.State != domain.ShiftFinalized {
		return false, nil
	}
	s.State = domain.ShiftApproved
	s.ApprovedBy = &approver
	s.RejectedBy = nil
	s.UpdatedAt = at
	r.byID[id] = s
	return true, nil
}

func (r *Repo) AddPhoto(ctx context.Context, p shiftrepo.Photo) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ShiftID]; !ok {
		return shiftrepo.ErrNotFound
	}
	key := photoKey{shift: p.ShiftID, typ: p.Type}
	if _, ok := r.photos[key]; ok {
		return shiftrepo.ErrDuplicatePhoto
	}
	r.photos[key] = p
	return nil
}

func (r *Repo) CountPhotos(ctx context.Context, id domain.ShiftID, t domain.PhotoType) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.photos[photoKey{shift: id, typ: t}]; ok {
		return 1, nil
	}
	return 0, nil
}
