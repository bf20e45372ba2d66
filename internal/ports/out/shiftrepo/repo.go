package shiftrepo

import (
	"context"
	"errors"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/domain"
)

var (
	// ErrNotFound indicates the requested shift does not exist.
	ErrNotFound = errors.New("shift not found")

	// ErrDuplicatePhoto indicates evidence of that type already exists for the shift.
	ErrDuplicatePhoto = errors.New("duplicate shift photo")
)

// Shift is the persistence shape used by the shift repository.
type Shift struct {
	ID         domain.ShiftID
	EmployeeID domain.UserID
	SiteID     domain.SiteID
	State      domain.ShiftState

	StartAt time.Time
	EndAt   *time.Time
	EndLat  *float64
	EndLng  *float64

	ApprovedBy *domain.UserID
	RejectedBy *domain.UserID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Photo is one evidence record bound to a shift.
type Photo struct {
	ShiftID     domain.ShiftID
	UserID      domain.UserID
	StoragePath string
	Type        domain.PhotoType

	Lat      float64
	Lng      float64
	Accuracy float64

	SHA256   string
	MIMEType string
	FileSize int64

	CapturedAt time.Time
	CreatedAt  time.Time
}

// Repository provides access to persisted shifts and their evidence.
//
// The guarded mutations (End, Approve) apply the state transition only when
// the row still matches the expected prior state, and report whether a row
// was updated. A false return means the transition was lost to a concurrent
// writer or the state had already moved on.
type Repository interface {
	// Create persists a new shift and returns its assigned id.
	Create(ctx context.Context, s Shift) (domain.ShiftID, error)
	GetByID(ctx context.Context, id domain.ShiftID) (Shift, error)

	// End transitions an active shift owned by employee to finalized.
	End(ctx context.Context, id domain.ShiftID, employee domain.UserID, at time.Time, lat, lng float64) (bool, error)

	// Approve transitions a finalized shift to approved, clearing any rejection.
	Approve(ctx context.Context, id domain.ShiftID, approver domain.UserID, at time.Time) (bool, error)

	// AddPhoto records evidence; at most one photo per (shift, type).
	AddPhoto(ctx context.Context, p Photo) error
	CountPhotos(ctx context.Context, id domain.ShiftID, t domain.PhotoType) (int, error)
}
