package supplies

import (
	"context"
	"errors"
	"net/http"

	"github.com/turnotrack/shift-ops-api/internal/app/apperr"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/clock"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/siterepo"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/supplyrepo"
)

// Service records supply deliveries at sites.
type Service struct {
	supplies supplyrepo.Repository
	sites    siterepo.Repository
	clock    clock.Clock
}

func New(supplies supplyrepo.Repository, sites siterepo.Repository, clk clock.Clock) *Service {
	return &Service{supplies: supplies, sites: sites, clock: clk}
}

type DeliverResult struct {
	DeliveryID domain.DeliveryID `json:"delivery_id"`
	SiteID     domain.SiteID     `json:"site_id"`
	Quantity   int               `json:"quantity"`
}

// Deliver records one delivery. Supervisors may only record deliveries at
// sites within their scope.
func (s *Service) Deliver(ctx context.Context, actor domain.User, supplyID domain.SupplyID, siteID domain.SiteID, quantity int) (DeliverResult, *apperr.Error) {
	if _, err := s.sites.GetByID(ctx, siteID); err != nil {
		if errors.Is(err, siterepo.ErrNotFound) {
			return DeliverResult{}, apperr.Validation(http.StatusUnprocessableEntity, "unknown site")
		}
		return DeliverResult{}, apperr.System("site lookup failed", err)
	}
	if actor.Role == domain.RoleSupervisor {
		scoped, err := s.sites.SupervisorHasSite(ctx, actor.ID, siteID)
		if err != nil {
			return DeliverResult{}, apperr.System("site scope lookup failed", err)
		}
		if !scoped {
			return DeliverResult{}, apperr.Forbidden("site outside supervisor scope")
		}
	}

	id, err := s.supplies.Create(ctx, supplyrepo.Delivery{
		SupplyID:    supplyID,
		SiteID:      siteID,
		Quantity:    quantity,
		DeliveredBy: actor.ID,
		DeliveredAt: s.clock.Now(),
	})
	if err != nil {
		return DeliverResult{}, apperr.System("delivery create failed", err)
	}
	return DeliverResult{DeliveryID: id, SiteID: siteID, Quantity: quantity}, nil
}
