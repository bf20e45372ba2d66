package geo

import (
	"context"
	"errors"
	"math"

	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/geofence"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/siterepo"
)

const earthRadiusM = 6371000.0

// Checker implements geofence.Checker with a great-circle distance against
// the site's stored center and radius.
type Checker struct {
	sites siterepo.Repository
}

func NewChecker(sites siterepo.Repository) *Checker {
	return &Checker{sites: sites}
}

func (c *Checker) Within(ctx context.Context, site domain.SiteID, lat, lng float64) (bool, error) {
	s, err := c.sites.GetByID(ctx, site)
	if err != nil {
		if errors.Is(err, siterepo.ErrNotFound) {
			return false, geofence.ErrUnknownSite
		}
		return false, err
	}
	return haversineM(s.Lat, s.Lng, lat, lng) <= s.RadiusM, nil
}

func haversineM(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180
	phi1 := lat1 * degToRad
	phi2 := lat2 * degToRad
	dPhi := (lat2 - lat1) * degToRad
	dLambda := (lng2 - lng1) * degToRad

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
