package reportrepo

import (
	"context"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/domain"
)

// Report is the persistence shape for a generated report.
type Report struct {
	ID     domain.ReportID
	SiteID domain.SiteID

	// PeriodStart/PeriodEnd carry date-only semantics.
	PeriodStart time.Time
	PeriodEnd   time.Time

	GeneratedBy domain.UserID
	GeneratedAt time.Time

	// Filters is the canonical filter document the report was built from.
	Filters      map[string]any
	FilePath     string
	DocumentHash string
}

// Repository persists reports. Create assigns and returns the report id.
type Repository interface {
	Create(ctx context.Context, r Report) (domain.ReportID, error)
}
