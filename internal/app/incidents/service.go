package incidents

import (
	"context"
	"errors"
	"net/http"

	"github.com/turnotrack/shift-ops-api/internal/app/apperr"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/clock"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/incidentrepo"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/shiftrepo"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/siterepo"
)

// Service records incident reports against shifts.
type Service struct {
	incidents incidentrepo.Repository
	shifts    shiftrepo.Repository
	sites     siterepo.Repository
	clock     clock.Clock
}

func New(incidents incidentrepo.Repository, shifts shiftrepo.Repository, sites siterepo.Repository, clk clock.Clock) *Service {
	return &Service{incidents: incidents, shifts: shifts, sites: sites, clock: clk}
}

type CreateResult struct {
	IncidentID domain.IncidentID `json:"incident_id"`
	ShiftID    domain.ShiftID    `json:"shift_id"`
}

// Create records an incident. Employees may only report on their own shifts;
// supervisors on shifts at sites within their scope; admins on any shift.
func (s *Service) Create(ctx context.Context, actor domain.User, shiftID domain.ShiftID, description string) (CreateResult, *apperr.Error) {
	shift, err := s.shifts.GetByID(ctx, shiftID)
	if err != nil {
		if errors.Is(err, shiftrepo.ErrNotFound) {
			return CreateResult{}, apperr.Business(http.StatusNotFound, "shift not found")
		}
		return CreateResult{}, apperr.System("shift lookup failed", err)
	}

	switch actor.Role {
	case domain.RoleEmployee:
		if shift.EmployeeID != actor.ID {
			return CreateResult{}, apperr.Forbidden("shift does not belong to caller")
		}
	case domain.RoleSupervisor:
		scoped, err := s.sites.SupervisorHasSite(ctx, actor.ID, shift.SiteID)
		if err != nil {
			return CreateResult{}, apperr.System("site scope lookup failed", err)
		}
		if !scoped {
			return CreateResult{}, apperr.Forbidden("site outside supervisor scope")
		}
	}

	id, err := s.incidents.Create(ctx, incidentrepo.Incident{
		ShiftID:     shiftID,
		Description: description,
		CreatedBy:   actor.ID,
		CreatedAt:   s.clock.Now(),
	})
	if err != nil {
		return CreateResult{}, apperr.System("incident create failed", err)
	}
	return CreateResult{IncidentID: id, ShiftID: shiftID}, nil
}
