package geofence

import (
	"context"
	"errors"

	"github.com/turnotrack/shift-ops-api/internal/domain"
)

var (
	// ErrUnknownSite indicates the site the check refers to does not exist.
	ErrUnknownSite = errors.New("unknown site")
)

// Checker yields the boolean geofence admission decision for a coordinate
// against a site. Radius semantics live behind this interface.
type Checker interface {
	Within(ctx context.Context, site domain.SiteID, lat, lng float64) (bool, error)
}
