package incidentrepo

import (
	"context"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/domain"
)

// Incident is the persistence shape for an incident report.
type Incident struct {
	ID          domain.IncidentID
	ShiftID     domain.ShiftID
	Description string
	CreatedBy   domain.UserID
	CreatedAt   time.Time
}

// Repository persists incidents. Create assigns and returns the incident id.
type Repository interface {
	Create(ctx context.Context, in Incident) (domain.IncidentID, error)
	ListByShift(ctx context.Context, shift domain.ShiftID) ([]Incident, error)
}
