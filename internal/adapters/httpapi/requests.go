package httpapi

import (
	"net/http"
	"time"
	"unicode/utf8"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/turnotrack/shift-ops-api/internal/app/apperr"
	"github.com/turnotrack/shift-ops-api/internal/domain"
)

// Request body shapes and their validation. Validation runs before any
// idempotency claim so an invalid body never consumes a key.

func invalid(field, reason string) *apperr.Error {
	return apperr.Validation(http.StatusUnprocessableEntity, "invalid request body").
		WithDetails(map[string]any{"field": field, "reason": reason})
}

func validCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

type endShiftRequest struct {
	ShiftID int64    `json:"shift_id"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

func (r *endShiftRequest) Validate() *apperr.Error {
	if r.ShiftID <= 0 {
		return invalid("shift_id", "must be a positive integer")
	}
	if r.Lat == nil || r.Lng == nil {
		return invalid("lat", "lat and lng are required")
	}
	if !validCoordinate(*r.Lat, *r.Lng) {
		return invalid("lat", "coordinate out of range")
	}
	return nil
}

type approveShiftRequest struct {
	ShiftID int64 `json:"shift_id"`
}

func (r *approveShiftRequest) Validate() *apperr.Error {
	if r.ShiftID <= 0 {
		return invalid("shift_id", "must be a positive integer")
	}
	return nil
}

type createIncidentRequest struct {
	ShiftID     int64  `json:"shift_id"`
	Description string `json:"description"`
}

func (r *createIncidentRequest) Validate() *apperr.Error {
	if r.ShiftID <= 0 {
		return invalid("shift_id", "must be a positive integer")
	}
	if n := utf8.RuneCountInString(r.Description); n < 5 || n > 5000 {
		return invalid("description", "must be 5 to 5000 characters")
	}
	return nil
}

const (
	evidenceActionRequest  = "request_upload"
	evidenceActionFinalize = "finalize_upload"
)

type evidenceRequest struct {
	Action  string `json:"action"`
	ShiftID int64  `json:"shift_id"`
	Type    string `json:"type"`

	// finalize_upload only.
	StoragePath string  `json:"storage_path,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	Lng         float64 `json:"lng,omitempty"`
	Accuracy    float64 `json:"accuracy,omitempty"`
	CapturedAt  string  `json:"captured_at,omitempty"`
}

func (r *evidenceRequest) Validate() *apperr.Error {
	if r.Action != evidenceActionRequest && r.Action != evidenceActionFinalize {
		return invalid("action", "must be request_upload or finalize_upload")
	}
	if r.ShiftID <= 0 {
		return invalid("shift_id", "must be a positive integer")
	}
	if !domain.PhotoType(r.Type).Valid() {
		return invalid("type", "must be start or end")
	}
	if r.Action == evidenceActionFinalize {
		if r.StoragePath == "" {
			return invalid("storage_path", "required for finalize_upload")
		}
		if !validCoordinate(r.Lat, r.Lng) {
			return invalid("lat", "coordinate out of range")
		}
		if r.Accuracy < 0 {
			return invalid("accuracy", "must not be negative")
		}
		if _, err := time.Parse(time.RFC3339, r.CapturedAt); err != nil {
			return invalid("captured_at", "must be an RFC 3339 timestamp")
		}
	}
	return nil
}

type generateReportRequest struct {
	SiteID      int64              `json:"site_id"`
	PeriodStart openapi_types.Date `json:"period_start"`
	PeriodEnd   openapi_types.Date `json:"period_end"`
	Filters     map[string]any     `json:"filters,omitempty"`
}

func (r *generateReportRequest) Validate() *apperr.Error {
	if r.SiteID <= 0 {
		return invalid("site_id", "must be a positive integer")
	}
	if r.PeriodStart.IsZero() || r.PeriodEnd.IsZero() {
		return invalid("period_start", "period_start and period_end are required")
	}
	if r.PeriodEnd.Before(r.PeriodStart.Time) {
		return invalid("period_end", "must not precede period_start")
	}
	return nil
}

type deliverSupplyRequest struct {
	SupplyID int64 `json:"supply_id"`
	SiteID   int64 `json:"site_id"`
	Quantity int   `json:"quantity"`
}

func (r *deliverSupplyRequest) Validate() *apperr.Error {
	if r.SupplyID <= 0 {
		return invalid("supply_id", "must be a positive integer")
	}
	if r.SiteID <= 0 {
		return invalid("site_id", "must be a positive integer")
	}
	if r.Quantity <= 0 || r.Quantity > 100000 {
		return invalid("quantity", "must be between 1 and 100000")
	}
	return nil
}

type acceptConsentRequest struct {
	TermID *int64 `json:"term_id,omitempty"`
}

func (r *acceptConsentRequest) Validate() *apperr.Error {
	if r.TermID != nil && *r.TermID <= 0 {
		return invalid("term_id", "must be a positive integer")
	}
	return nil
}
