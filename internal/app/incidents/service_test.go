package incidents

import (
	"context"
	"net/http"
	"testing"
	"time"

	memclock "github.com/turnotrack/shift-ops-api/internal/adapters/memory/clock"
	memincidentrepo "github.com/turnotrack/shift-ops-api/internal/adapters/memory/incidentrepo"
	memshiftrepo "github.com/turnotrack/shift-ops-api/internal/adapters/memory/shiftrepo"
	memsiterepo "github.com/turnotrack/shift-ops-api/internal/adapters/memory/siterepo"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/shiftrepo"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/siterepo"
)

func newService(t *testing.T) (*Service, domain.ShiftID) {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC))
	sites := memsiterepo.NewRepo()
	sites.Put(siterepo.Site{ID: 1, Name: "Central", Lat: 40, Lng: -3, RadiusM: 100})
	sites.Assign("sup-1", 1)

	shiftRepo := memshiftrepo.NewRepo()
	shiftID, err := shiftRepo.Create(context.Background(), shiftrepo.Shift{
		EmployeeID: "emp-1", SiteID: 1, State: domain.ShiftActive,
		StartAt: clk.Now(), CreatedAt: clk.Now(), UpdatedAt: clk.Now(),
	})
	if err != nil {
		t.Fatalf("seed shift: %v", err)
	}
	return New(memincidentrepo.NewRepo(), shiftRepo, sites, clk), shiftID
}

func TestCreate_Scoping(t *testing.T) {
	t.Parallel()

	svc, shiftID := newService(t)
	ctx := context.Background()
	desc := "forklift clipped the rack"

	cases := []struct {
		name     string
		actor    domain.User
		wantCode int
	}{
		{"owner employee", domain.User{ID: "emp-1", Role: domain.RoleEmployee}, 0},
		{"other employee", domain.User{ID: "emp-2", Role: domain.RoleEmployee}, http.StatusForbidden},
		{"scoped supervisor", domain.User{ID: "sup-1", Role: domain.RoleSupervisor}, 0},
		{"unscoped supervisor", domain.User{ID: "sup-2", Role: domain.RoleSupervisor}, http.StatusForbidden},
		{"admin", domain.User{ID: "adm-1", Role: domain.RoleAdmin}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, ae := svc.Create(ctx, tc.actor, shiftID, desc)
			if tc.wantCode == 0 {
				if ae != nil {
					t.Fatalf("unexpected error: %v", ae)
				}
				if out.IncidentID == 0 || out.ShiftID != shiftID {
					t.Fatalf("unexpected result: %+v", out)
				}
				return
			}
			if ae == nil || ae.Code != tc.wantCode {
				t.Fatalf("error = %v, want code %d", ae, tc.wantCode)
			}
		})
	}
}

func TestCreate_UnknownShift(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	_, ae := svc.Create(context.Background(), domain.User{ID: "adm-1", Role: domain.RoleAdmin}, 999, "never happened")
	if ae == nil || ae.Code != http.StatusNotFound {
		t.Fatalf("error = %v, want 404", ae)
	}
}
