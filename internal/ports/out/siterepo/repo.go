package siterepo

import (
	"context"
	"errors"

	"github.com/turnotrack/shift-ops-api/internal/domain"
)

var (
	// ErrNotFound indicates the requested site does not exist.
	ErrNotFound = errors.New("site not found")
)

// Site is a geofenced work location.
type Site struct {
	ID   domain.SiteID
	Name string

	Lat     float64
	Lng     float64
	RadiusM float64
}

// Repository provides access to sites and supervisor site assignments.
type Repository interface {
	GetByID(ctx context.Context, id domain.SiteID) (Site, error)

	// SupervisorHasSite reports whether the supervisor is assigned to the site.
	SupervisorHasSite(ctx context.Context, supervisor domain.UserID, site domain.SiteID) (bool, error)
}
