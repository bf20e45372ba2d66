package shifts

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/app/apperr"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/clock"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/geofence"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/shiftrepo"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/siterepo"
)

// Service implements shift lifecycle transitions: an employee ends their own
// active shift, a supervisor or admin approves a finalized one.
type Service struct {
	shifts shiftrepo.Repository
	sites  siterepo.Repository
	fence  geofence.Checker
	clock  clock.Clock
}

func New(shifts shiftrepo.Repository, sites siterepo.Repository, fence geofence.Checker, clk clock.Clock) *Service {
	return &Service{shifts: shifts, sites: sites, fence: fence, clock: clk}
}

type EndResult struct {
	ShiftID domain.ShiftID    `json:"shift_id"`
	State   domain.ShiftState `json:"state"`
	EndedAt time.Time         `json:"ended_at"`
}

// End finalizes the caller's active shift. The coordinate must fall inside the
// shift site's geofence, and the state transition is guarded against races.
func (s *Service) End(ctx context.Context, employee domain.UserID, id domain.ShiftID, lat, lng float64) (EndResult, *apperr.Error) {
	shift, err := s.shifts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, shiftrepo.ErrNotFound) {
			return EndResult{}, apperr.Business(http.StatusNotFound, "shift not found")
		}
		return EndResult{}, apperr.System("shift lookup failed", err)
	}
	if shift.EmployeeID != employee {
		return EndResult{}, apperr.Forbidden("shift does not belong to caller")
	}
	if shift.State != domain.ShiftActive {
		return EndResult{}, apperr.Business(http.StatusConflict, "shift is not active")
	}

	within, err := s.fence.Within(ctx, shift.SiteID, lat, lng)
	if err != nil {
		if errors.Is(err, geofence.ErrUnknownSite) {
			return EndResult{}, apperr.Validation(http.StatusUnprocessableEntity, "unknown site")
		}
		return EndResult{}, apperr.System("geofence check failed", err)
	}
	if !within {
		return EndResult{}, apperr.Business(http.StatusConflict, "location outside site geofence")
	}

	now := s.clock.Now()
	ok, err := s.shifts.End(ctx, id, employee, now, lat, lng)
	if err != nil {
		return EndResult{}, apperr.System("shift end failed", err)
	}
	if !ok {
		// Lost the race: someone else moved the shift out of active first.
		return EndResult{}, apperr.Business(http.StatusConflict, "shift is not active")
	}
	return EndResult{ShiftID: id, State: domain.ShiftFinalized, EndedAt: now}, nil
}

type ApproveResult struct {
	ShiftID    domain.ShiftID    `json:"shift_id"`
	State      domain.ShiftState `json:"state"`
	ApprovedBy domain.UserID     `json:"approved_by"`
	ApprovedAt time.Time         `json:"approved_at"`
}

// Approve moves a finalized shift to approved. Supervisors may only approve
// shifts at sites they are assigned to; admins are unrestricted.
func (s *Service) Approve(ctx context.Context, actor domain.User, id domain.ShiftID) (ApproveResult, *apperr.Error) {
	shift, err := s.shifts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, shiftrepo.ErrNotFound) {
			return ApproveResult{}, apperr.Business(http.StatusNotFound, "shift not found")
		}
		return ApproveResult{}, apperr.System("shift lookup failed", err)
	}

	if actor.Role == domain.RoleSupervisor {
		scoped, err := s.sites.SupervisorHasSite(ctx, actor.ID, shift.SiteID)
		if err != nil {
			return ApproveResult{}, apperr.System("site scope lookup failed", err)
		}
		if !scoped {
			return ApproveResult{}, apperr.Forbidden("site outside supervisor scope")
		}
	}

	if shift.State != domain.ShiftFinalized {
		return ApproveResult{}, apperr.Business(http.StatusConflict, "shift is not finalized")
	}

	now := s.clock.Now()
	ok, err := s.shifts.Approve(ctx, id, actor.ID, now)
	if err != nil {
		return ApproveResult{}, apperr.System("shift approve failed", err)
	}
	if !ok {
		return ApproveResult{}, apperr.Business(http.StatusConflict, "shift is not finalized")
	}
	return ApproveResult{ShiftID: id, State: domain.ShiftApproved, ApprovedBy: actor.ID, ApprovedAt: now}, nil
}
