package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turnotrack/shift-ops-api/internal/app/apperr"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/auditlog"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/clock"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/idempotency"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/legalrepo"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/ratelimit"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/userrepo"
)

// UnknownOrigin is the sentinel bucket component used when no trusted proxy
// header identifies the client. All such callers share one rate-limit bucket
// per operation.
const UnknownOrigin = "trusted-proxy-unknown"

const maxBodyBytes = 1 << 20

// Pipeline runs every request through the same ordered stages: guards,
// payload validation, idempotency claim, rate limiting, business execution,
// response finalization and audit. Each request produces exactly one response
// and exactly one access-log line, and a claimed idempotency record is
// finalized on every exit path after the claim.
type Pipeline struct {
	verifier TokenVerifier
	users    userrepo.Repository
	legal    legalrepo.Repository
	idem     idempotency.Store
	rates    ratelimit.Store
	audit    auditlog.Sink
	clock    clock.Clock
	log      *slog.Logger
}

func New(
	verifier TokenVerifier,
	users userrepo.Repository,
	legal legalrepo.Repository,
	idem idempotency.Store,
	rates ratelimit.Store,
	audit auditlog.Sink,
	clk clock.Clock,
	log *slog.Logger,
) *Pipeline {
	return &Pipeline{
		verifier: verifier,
		users:    users,
		legal:    legal,
		idem:     idem,
		rates:    rates,
		audit:    audit,
		clock:    clk,
		log:      log,
	}
}

func (p *Pipeline) guardsFor(op Operation) []guard {
	guards := []guard{methodGuard{allowed: op.Methods}}
	if op.Roles != nil {
		guards = append(guards,
			identityGuard{verifier: p.verifier, users: p.users},
			roleGuard{allowed: op.Roles},
		)
	}
	if op.Consent {
		guards = append(guards, consentGuard{legal: p.legal})
	}
	return guards
}

// Handler builds the http.HandlerFunc for one operation.
func (p *Pipeline) Handler(op Operation) http.HandlerFunc {
	guards := p.guardsFor(op)

	return func(w http.ResponseWriter, r *http.Request) {
		req := &Request{
			ID:        uuid.NewString(),
			Operation: op.Name,
			Method:    r.Method,
			Origin:    clientOrigin(r),
			UserAgent: r.UserAgent(),
			StartedAt: p.clock.Now(),
		}

		status := 0
		category := ""
		defer func() {
			attrs := []any{
				slog.String("request_id", req.ID),
				slog.String("operation", op.Name),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.String("origin", req.Origin),
				slog.Duration("duration", p.clock.Now().Sub(req.StartedAt)),
			}
			if req.Actor != nil {
				attrs = append(attrs,
					slog.String("user_id", string(req.Actor.ID)),
					slog.String("role", string(req.Actor.Role)))
			}
			if category != "" {
				attrs = append(attrs, slog.String("error_category", category))
			}
			p.log.Info("request", attrs...)
		}()

		if r.Method == http.MethodOptions {
			status = http.StatusNoContent
			writePreflight(w, req.ID)
			return
		}

		ctx := r.Context()

		// A claimed record must be finalized exactly once, on success or
		// failure, before the response leaves the process.
		claimed := false
		identity := idempotency.Identity{}

		fail := func(err error) {
			ae := apperr.Normalize(err)
			if ae.Unwrap() != nil {
				p.log.Error("request failed", slog.String("request_id", req.ID),
					slog.String("operation", op.Name), slog.String("error", ae.Error()))
			}
			status = ae.Code
			category = string(ae.Category)
			body, mErr := json.Marshal(failureEnvelope(req.ID, ae))
			if mErr != nil {
				body = []byte(`{"success":false,"data":null,"error":{"code":500,"message":"internal error","category":"SYSTEM","request_id":"` + req.ID + `"},"request_id":"` + req.ID + `"}`)
				status = http.StatusInternalServerError
			}
			if claimed {
				claimed = false
				if fErr := p.idem.Finalize(ctx, identity, status, body); fErr != nil {
					p.log.Error("finalize failed", slog.String("request_id", req.ID),
						slog.String("operation", op.Name), slog.String("error", fErr.Error()))
				}
			}
			writeRaw(w, status, req.ID, body)
		}

		for _, g := range guards {
			if ae := g.check(ctx, r, req); ae != nil {
				fail(ae)
				return
			}
		}

		var payload Payload
		if op.NewPayload != nil {
			payload = op.NewPayload()
			if ae := decodeBody(r, payload); ae != nil {
				fail(ae)
				return
			}
			if ae := payload.Validate(); ae != nil {
				fail(ae)
				return
			}
		}

		if op.Idempotent {
			key := r.Header.Get("Idempotency-Key")
			if ae := validateIdempotencyKey(key); ae != nil {
				fail(ae)
				return
			}
			req.IdempotencyKey = key

			fingerprint, err := Fingerprint(payload)
			if err != nil {
				fail(apperr.System("payload fingerprint failed", err))
				return
			}

			identity = idempotency.Identity{
				UserID:    req.Actor.ID,
				Operation: op.Name,
				Key:       key,
			}
			claim, err := p.idem.Claim(ctx, identity, fingerprint)
			if err != nil {
				fail(apperr.System("idempotency claim failed", err))
				return
			}
			switch claim.Outcome {
			case idempotency.OutcomeClaimed:
				claimed = true
			case idempotency.OutcomeReplay:
				status = claim.Stored.StatusCode
				writeRaw(w, claim.Stored.StatusCode, req.ID, claim.Stored.Body)
				return
			case idempotency.OutcomeProcessing:
				fail(apperr.Business(http.StatusConflict, "an identical request is still processing"))
				return
			case idempotency.OutcomePayloadConflict:
				fail(apperr.Validation(http.StatusConflict, "idempotency key reused with a different payload"))
				return
			default:
				fail(apperr.System("idempotency claim failed", nil))
				return
			}
		}

		if op.RateLimit.Limit > 0 {
			if ae := p.admit(ctx, op, req); ae != nil {
				fail(ae)
				return
			}
		}

		result, aerr := op.Execute(ctx, req, payload)
		if aerr != nil {
			fail(aerr)
			return
		}
		if result.Status == 0 {
			result.Status = http.StatusOK
		}

		body, err := json.Marshal(successEnvelope(req.ID, result.Data))
		if err != nil {
			fail(apperr.System("response marshal failed", err))
			return
		}

		if claimed {
			claimed = false
			if err := p.idem.Finalize(ctx, identity, result.Status, body); err != nil {
				p.log.Error("finalize failed", slog.String("request_id", req.ID),
					slog.String("operation", op.Name), slog.String("error", err.Error()))
			}
		}

		if result.Audit != nil {
			p.safeAudit(ctx, req, *result.Audit)
		}

		status = result.Status
		writeRaw(w, result.Status, req.ID, body)
	}
}

// admit applies the durable fixed-window limiter. A store failure denies the
// request: the limiter protects shared backends, so it fails closed.
func (p *Pipeline) admit(ctx context.Context, op Operation, req *Request) *apperr.Error {
	bucket := bucketKey(req.Actor.ID, req.Origin, op.Name)
	windowStart := p.clock.Now().Truncate(op.RateLimit.Window)
	count, err := p.rates.Incr(ctx, bucket, windowStart)
	if err != nil {
		return apperr.System("rate limit check failed", err)
	}
	if count > op.RateLimit.Limit {
		return apperr.New(http.StatusTooManyRequests, apperr.CategoryPermission, "rate limit exceeded").
			WithDetails(map[string]any{
				"limit":          op.RateLimit.Limit,
				"window_seconds": int(op.RateLimit.Window / time.Second),
			})
	}
	return nil
}

func bucketKey(user domain.UserID, origin, operation string) string {
	return string(user) + ":" + origin + ":" + operation
}

func (p *Pipeline) safeAudit(ctx context.Context, req *Request, e auditlog.Entry) {
	e.RequestID = req.ID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = p.clock.Now()
	}
	if err := p.audit.Write(ctx, e); err != nil {
		p.log.Error("audit write failed", slog.String("request_id", req.ID),
			slog.String("action", e.Action), slog.String("error", err.Error()))
	}
}

func decodeBody(r *http.Request, into Payload) *apperr.Error {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return apperr.Validation(http.StatusUnsupportedMediaType, "content type must be application/json")
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return apperr.Validation(http.StatusBadRequest, "unreadable request body")
	}
	if len(body) > maxBodyBytes {
		return apperr.Validation(http.StatusRequestEntityTooLarge, "request body too large")
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, into); err != nil {
		return apperr.Validation(http.StatusUnprocessableEntity, "malformed json body")
	}
	return nil
}

func validateIdempotencyKey(key string) *apperr.Error {
	if len(key) < 8 || len(key) > 128 {
		return apperr.Validation(http.StatusUnprocessableEntity, "idempotency key must be 8 to 128 characters").
			WithDetails(map[string]any{"header": "Idempotency-Key"})
	}
	return nil
}

// clientOrigin resolves the caller's address from trusted proxy headers.
// Values carrying a comma were joined by an untrusted hop and are ignored.
func clientOrigin(r *http.Request) string {
	for _, header := range []string{"CF-Connecting-IP", "X-Real-IP"} {
		v := strings.TrimSpace(r.Header.Get(header))
		if v == "" || strings.Contains(v, ",") {
			continue
		}
		if ip := net.ParseIP(v); ip != nil {
			return ip.String()
		}
	}
	return UnknownOrigin
}

func userIDFromSubject(subject string) domain.UserID {
	return domain.UserID(subject)
}
