package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/app/apperr"
	"github.com/turnotrack/shift-ops-api/internal/app/evidence"
	"github.com/turnotrack/shift-ops-api/internal/app/incidents"
	"github.com/turnotrack/shift-ops-api/internal/app/legal"
	"github.com/turnotrack/shift-ops-api/internal/app/pipeline"
	"github.com/turnotrack/shift-ops-api/internal/app/reports"
	"github.com/turnotrack/shift-ops-api/internal/app/shifts"
	"github.com/turnotrack/shift-ops-api/internal/app/supplies"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/auditlog"
)

// Audit actions recorded after each successful operation.
const (
	actionShiftEnd           = "SHIFT_END"
	actionShiftApprove       = "SHIFT_APPROVE"
	actionIncidentCreate     = "INCIDENT_CREATE"
	actionEvidenceRequest    = "EVIDENCE_UPLOAD_REQUEST"
	actionEvidenceFinalize   = "EVIDENCE_UPLOAD_FINALIZE"
	actionReportGenerate     = "REPORT_GENERATE"
	actionSupplyDelivery     = "SUPPLY_DELIVERY"
	actionLegalConsentAccept = "LEGAL_CONSENT_ACCEPT"
)

var (
	allRoles        = []domain.Role{domain.RoleAdmin, domain.RoleSupervisor, domain.RoleEmployee}
	employeeOnly    = []domain.Role{domain.RoleEmployee}
	supervisorAdmin = []domain.Role{domain.RoleAdmin, domain.RoleSupervisor}
)

const rateWindow = time.Minute

// Server holds the application services and turns them into pipeline
// operation descriptors.
type Server struct {
	Shifts    *shifts.Service
	Evidence  *evidence.Service
	Incidents *incidents.Service
	Reports   *reports.Service
	Supplies  *supplies.Service
	Legal     *legal.Service
}

func NewServer(
	shiftsSvc *shifts.Service,
	evidenceSvc *evidence.Service,
	incidentsSvc *incidents.Service,
	reportsSvc *reports.Service,
	suppliesSvc *supplies.Service,
	legalSvc *legal.Service,
) *Server {
	return &Server{
		Shifts:    shiftsSvc,
		Evidence:  evidenceSvc,
		Incidents: incidentsSvc,
		Reports:   reportsSvc,
		Supplies:  suppliesSvc,
		Legal:     legalSvc,
	}
}

func overloadedError() *apperr.Error {
	return apperr.New(http.StatusTooManyRequests, apperr.CategorySystem, "server overloaded")
}

func (s *Server) Health() pipeline.Operation {
	return pipeline.Operation{
		Name:    "health",
		Methods: []string{http.MethodGet},
		Execute: func(context.Context, *pipeline.Request, pipeline.Payload) (pipeline.Result, *apperr.Error) {
			return pipeline.Result{Data: map[string]any{"status": "ok"}}, nil
		},
	}
}

func (s *Server) EndShift() pipeline.Operation {
	return pipeline.Operation{
		Name:       "shifts_end",
		Methods:    []string{http.MethodPost},
		Roles:      employeeOnly,
		Consent:    true,
		Idempotent: true,
		RateLimit:  pipeline.RateLimit{Limit: 20, Window: rateWindow},
		NewPayload: func() pipeline.Payload { return &endShiftRequest{} },
		Execute: func(ctx context.Context, req *pipeline.Request, p pipeline.Payload) (pipeline.Result, *apperr.Error) {
			body := p.(*endShiftRequest)
			out, ae := s.Shifts.End(ctx, req.Actor.ID, domain.ShiftID(body.ShiftID), *body.Lat, *body.Lng)
			if ae != nil {
				return pipeline.Result{}, ae
			}
			return pipeline.Result{
				Data: out,
				Audit: &auditlog.Entry{
					UserID: req.Actor.ID,
					Action: actionShiftEnd,
					Context: map[string]any{
						"shift_id": body.ShiftID,
						"lat":      *body.Lat,
						"lng":      *body.Lng,
					},
				},
			}, nil
		},
	}
}

func (s *Server) ApproveShift() pipeline.Operation {
	return pipeline.Operation{
		Name:       "shifts_approve",
		Methods:    []string{http.MethodPost},
		Roles:      supervisorAdmin,
		Consent:    true,
		Idempotent: true,
		RateLimit:  pipeline.RateLimit{Limit: 30, Window: rateWindow},
		NewPayload: func() pipeline.Payload { return &approveShiftRequest{} },
		Execute: func(ctx context.Context, req *pipeline.Request, p pipeline.Payload) (pipeline.Result, *apperr.Error) {
			body := p.(*approveShiftRequest)
			out, ae := s.Shifts.Approve(ctx, *req.Actor, domain.ShiftID(body.ShiftID))
			if ae != nil {
				return pipeline.Result{}, ae
			}
			return pipeline.Result{
				Data: out,
				Audit: &auditlog.Entry{
					UserID:  req.Actor.ID,
					Action:  actionShiftApprove,
					Context: map[string]any{"shift_id": body.ShiftID},
				},
			}, nil
		},
	}
}

func (s *Server) CreateIncident() pipeline.Operation {
	return pipeline.Operation{
		Name:       "incidents_create",
		Methods:    []string{http.MethodPost},
		Roles:      allRoles,
		Consent:    true,
		Idempotent: true,
		RateLimit:  pipeline.RateLimit{Limit: 25, Window: rateWindow},
		NewPayload: func() pipeline.Payload { return &createIncidentRequest{} },
		Execute: func(ctx context.Context, req *pipeline.Request, p pipeline.Payload) (pipeline.Result, *apperr.Error) {
			body := p.(*createIncidentRequest)
			out, ae := s.Incidents.Create(ctx, *req.Actor, domain.ShiftID(body.ShiftID), body.Description)
			if ae != nil {
				return pipeline.Result{}, ae
			}
			return pipeline.Result{
				Status: http.StatusCreated,
				Data:   out,
				Audit: &auditlog.Entry{
					UserID: req.Actor.ID,
					Action: actionIncidentCreate,
					Context: map[string]any{
						"incident_id": out.IncidentID,
						"shift_id":    body.ShiftID,
					},
				},
			}, nil
		},
	}
}

func (s *Server) EvidenceUpload() pipeline.Operation {
	return pipeline.Operation{
		Name:       "evidence_upload",
		Methods:    []string{http.MethodPost},
		Roles:      employeeOnly,
		Consent:    true,
		Idempotent: true,
		RateLimit:  pipeline.RateLimit{Limit: 20, Window: rateWindow},
		NewPayload: func() pipeline.Payload { return &evidenceRequest{} },
		Execute: func(ctx context.Context, req *pipeline.Request, p pipeline.Payload) (pipeline.Result, *apperr.Error) {
			body := p.(*evidenceRequest)
			switch body.Action {
			case evidenceActionRequest:
				out, ae := s.Evidence.RequestUpload(ctx, req.Actor.ID, domain.ShiftID(body.ShiftID), domain.PhotoType(body.Type))
				if ae != nil {
					return pipeline.Result{}, ae
				}
				return pipeline.Result{
					Data: out,
					Audit: &auditlog.Entry{
						UserID: req.Actor.ID,
						Action: actionEvidenceRequest,
						Context: map[string]any{
							"shift_id": body.ShiftID,
							"type":     body.Type,
						},
					},
				}, nil
			default: // evidenceActionFinalize, enforced by Validate
				capturedAt, _ := time.Parse(time.RFC3339, body.CapturedAt)
				out, ae := s.Evidence.FinalizeUpload(ctx, req.Actor.ID, evidence.FinalizeInput{
					ShiftID:     domain.ShiftID(body.ShiftID),
					Type:        domain.PhotoType(body.Type),
					StoragePath: body.StoragePath,
					Lat:         body.Lat,
					Lng:         body.Lng,
					Accuracy:    body.Accuracy,
					CapturedAt:  capturedAt,
				})
				if ae != nil {
					return pipeline.Result{}, ae
				}
				return pipeline.Result{
					Status: http.StatusCreated,
					Data:   out,
					Audit: &auditlog.Entry{
						UserID: req.Actor.ID,
						Action: actionEvidenceFinalize,
						Context: map[string]any{
							"shift_id":     body.ShiftID,
							"type":         body.Type,
							"storage_path": body.StoragePath,
							"sha256":       out.SHA256,
						},
					},
				}, nil
			}
		},
	}
}

func (s *Server) GenerateReport() pipeline.Operation {
	return pipeline.Operation{
		Name:       "reports_generate",
		Methods:    []string{http.MethodPost},
		Roles:      supervisorAdmin,
		Consent:    true,
		Idempotent: true,
		RateLimit:  pipeline.RateLimit{Limit: 10, Window: rateWindow},
		NewPayload: func() pipeline.Payload { return &generateReportRequest{} },
		Execute: func(ctx context.Context, req *pipeline.Request, p pipeline.Payload) (pipeline.Result, *apperr.Error) {
			body := p.(*generateReportRequest)
			out, ae := s.Reports.Generate(ctx, *req.Actor, reports.GenerateInput{
				SiteID:      domain.SiteID(body.SiteID),
				PeriodStart: body.PeriodStart.Time,
				PeriodEnd:   body.PeriodEnd.Time,
				Filters:     body.Filters,
			})
			if ae != nil {
				return pipeline.Result{}, ae
			}
			return pipeline.Result{
				Status: http.StatusCreated,
				Data:   out,
				Audit: &auditlog.Entry{
					UserID: req.Actor.ID,
					Action: actionReportGenerate,
					Context: map[string]any{
						"report_id":    out.ReportID,
						"site_id":      body.SiteID,
						"period_start": body.PeriodStart.Format("2006-01-02"),
						"period_end":   body.PeriodEnd.Format("2006-01-02"),
					},
				},
			}, nil
		},
	}
}

func (s *Server) DeliverSupply() pipeline.Operation {
	return pipeline.Operation{
		Name:       "supplies_deliver",
		Methods:    []string{http.MethodPost},
		Roles:      supervisorAdmin,
		Consent:    true,
		Idempotent: true,
		RateLimit:  pipeline.RateLimit{Limit: 30, Window: rateWindow},
		NewPayload: func() pipeline.Payload { return &deliverSupplyRequest{} },
		Execute: func(ctx context.Context, req *pipeline.Request, p pipeline.Payload) (pipeline.Result, *apperr.Error) {
			body := p.(*deliverSupplyRequest)
			out, ae := s.Supplies.Deliver(ctx, *req.Actor, domain.SupplyID(body.SupplyID), domain.SiteID(body.SiteID), body.Quantity)
			if ae != nil {
				return pipeline.Result{}, ae
			}
			return pipeline.Result{
				Status: http.StatusCreated,
				Data:   out,
				Audit: &auditlog.Entry{
					UserID: req.Actor.ID,
					Action: actionSupplyDelivery,
					Context: map[string]any{
						"delivery_id": out.DeliveryID,
						"site_id":     body.SiteID,
						"quantity":    body.Quantity,
					},
				},
			}, nil
		},
	}
}

func (s *Server) ConsentStatus() pipeline.Operation {
	return pipeline.Operation{
		Name:    "legal_consent",
		Methods: []string{http.MethodGet},
		Roles:   allRoles,
		Execute: func(ctx context.Context, req *pipeline.Request, _ pipeline.Payload) (pipeline.Result, *apperr.Error) {
			out, ae := s.Legal.Status(ctx, req.Actor.ID)
			if ae != nil {
				return pipeline.Result{}, ae
			}
			return pipeline.Result{Data: out}, nil
		},
	}
}

func (s *Server) AcceptConsent() pipeline.Operation {
	return pipeline.Operation{
		Name:       "legal_consent",
		Methods:    []string{http.MethodPost},
		Roles:      allRoles,
		Idempotent: true,
		NewPayload: func() pipeline.Payload { return &acceptConsentRequest{} },
		Execute: func(ctx context.Context, req *pipeline.Request, p pipeline.Payload) (pipeline.Result, *apperr.Error) {
			body := p.(*acceptConsentRequest)
			in := legal.AcceptInput{UserAgent: req.UserAgent}
			if body.TermID != nil {
				id := domain.LegalTermID(*body.TermID)
				in.TermID = &id
			}
			if req.Origin != pipeline.UnknownOrigin {
				origin := req.Origin
				in.IPAddress = &origin
			}
			out, ae := s.Legal.Accept(ctx, req.Actor.ID, in)
			if ae != nil {
				return pipeline.Result{}, ae
			}
			return pipeline.Result{
				Data: out,
				Audit: &auditlog.Entry{
					UserID: req.Actor.ID,
					Action: actionLegalConsentAccept,
					Context: map[string]any{
						"term_id": out.TermID,
						"version": out.Version,
					},
				},
			}, nil
		},
	}
}
