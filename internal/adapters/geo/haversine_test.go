package geo

import (
	"context"
	"errors"
	"math"
	"testing"

	memsiterepo "github.com/turnotrack/shift-ops-api/internal/adapters/memory/siterepo"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/geofence"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/siterepo"
)

func TestHaversineM(t *testing.T) {
	t.Parallel()

	// Madrid to Barcelona, roughly 505 km great-circle.
	d := haversineM(40.4168, -3.7038, 41.3874, 2.1686)
	if math.Abs(d-505000) > 5000 {
		t.Fatalf("distance = %.0f m, want ~505000", d)
	}

	if d := haversineM(40.0, -3.0, 40.0, -3.0); d != 0 {
		t.Fatalf("zero distance = %f", d)
	}

	// One degree of latitude is about 111 km regardless of longitude.
	d = haversineM(10.0, 50.0, 11.0, 50.0)
	if math.Abs(d-111195) > 500 {
		t.Fatalf("one-degree distance = %.0f m", d)
	}
}

func TestChecker_Within(t *testing.T) {
	t.Parallel()

	sites := memsiterepo.NewRepo()
	sites.Put(siterepo.Site{ID: 1, Name: "Central", Lat: 40.0, Lng: -3.0, RadiusM: 100})
	c := NewChecker(sites)

	within, err := c.Within(context.Background(), 1, 40.0, -3.0)
	if err != nil || !within {
		t.Fatalf("center: within=%v err=%v", within, err)
	}

	// ~111 m north of center, just past a 100 m radius.
	within, err = c.Within(context.Background(), 1, 40.001, -3.0)
	if err != nil || within {
		t.Fatalf("outside: within=%v err=%v", within, err)
	}

	if _, err = c.Within(context.Background(), 99, 40.0, -3.0); !errors.Is(err, geofence.ErrUnknownSite) {
		t.Fatalf("unknown site err = %v", err)
	}
}
