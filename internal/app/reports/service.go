package reports

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/app/apperr"
	"github.com/turnotrack/shift-ops-api/internal/app/pipeline"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/clock"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/reportrepo"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/siterepo"
)

// Service records report generation requests. The report document itself is
// produced asynchronously by a worker outside this API; this service persists
// the canonical request so the worker's output is reproducible.
type Service struct {
	reports reportrepo.Repository
	sites   siterepo.Repository
	clock   clock.Clock
}

func New(reports reportrepo.Repository, sites siterepo.Repository, clk clock.Clock) *Service {
	return &Service{reports: reports, sites: sites, clock: clk}
}

type GenerateInput struct {
	SiteID      domain.SiteID
	PeriodStart time.Time
	PeriodEnd   time.Time
	Filters     map[string]any
}

type GenerateResult struct {
	ReportID     domain.ReportID `json:"report_id"`
	FilePath     string          `json:"file_path"`
	DocumentHash string          `json:"document_hash"`
}

// Generate validates scope and records the report row with a deterministic
// file path and a canonical hash of the request document.
func (s *Service) Generate(ctx context.Context, actor domain.User, in GenerateInput) (GenerateResult, *apperr.Error) {
	if _, err := s.sites.GetByID(ctx, in.SiteID); err != nil {
		if errors.Is(err, siterepo.ErrNotFound) {
			return GenerateResult{}, apperr.Validation(http.StatusUnprocessableEntity, "unknown site")
		}
		return GenerateResult{}, apperr.System("site lookup failed", err)
	}
	if actor.Role == domain.RoleSupervisor {
		scoped, err := s.sites.SupervisorHasSite(ctx, actor.ID, in.SiteID)
		if err != nil {
			return GenerateResult{}, apperr.System("site scope lookup failed", err)
		}
		if !scoped {
			return GenerateResult{}, apperr.Forbidden("site outside supervisor scope")
		}
	}

	start := in.PeriodStart.Format("2006-01-02")
	end := in.PeriodEnd.Format("2006-01-02")
	doc := map[string]any{
		"site_id":      in.SiteID,
		"period_start": start,
		"period_end":   end,
		"filters":      in.Filters,
	}
	hash, err := pipeline.Fingerprint(doc)
	if err != nil {
		return GenerateResult{}, apperr.System("report document hash failed", err)
	}
	filePath := fmt.Sprintf("reports/%d/%s_%s/%s.json", in.SiteID, start, end, hash[:16])

	id, err := s.reports.Create(ctx, reportrepo.Report{
		SiteID:       in.SiteID,
		PeriodStart:  in.PeriodStart,
		PeriodEnd:    in.PeriodEnd,
		GeneratedBy:  actor.ID,
		GeneratedAt:  s.clock.Now(),
		Filters:      in.Filters,
		FilePath:     filePath,
		DocumentHash: hash,
	})
	if err != nil {
		return GenerateResult{}, apperr.System("report create failed", err)
	}
	return GenerateResult{ReportID: id, FilePath: filePath, DocumentHash: hash}, nil
}
