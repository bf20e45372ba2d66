package supplyrepo

import (
	"context"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/domain"
)

// Delivery is the persistence shape for a supply delivery.
type Delivery struct {
	ID       domain.DeliveryID
	SupplyID domain.SupplyID
	SiteID   domain.SiteID
	Quantity int

	DeliveredBy domain.UserID
	DeliveredAt time.Time
}

// Repository persists supply deliveries. Create assigns and returns the id.
type Repository interface {
	Create(ctx context.Context, d Delivery) (domain.DeliveryID, error)
}
