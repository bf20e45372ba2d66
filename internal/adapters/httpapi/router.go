package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/turnotrack/shift-ops-api/internal/app/pipeline"
)

// NewRouter constructs the API HTTP router.
//
// This is intentionally a thin adapter: every route is described by an
// operation descriptor and handed to the pipeline, which owns guards,
// idempotency, rate limiting, and response shaping. The router only wires
// paths and baseline middleware.
func NewRouter(p *pipeline.Pipeline, s *Server, inbound *rate.Limiter) http.Handler {
	r := chi.NewRouter()

	// Baseline production-safe middleware (minimal but useful).
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if inbound != nil {
		r.Use(throttle(inbound))
	}

	r.Handle("/healthz", p.Handler(s.Health()))

	r.Handle("/shifts/end", p.Handler(s.EndShift()))
	r.Handle("/shifts/approve", p.Handler(s.ApproveShift()))
	r.Handle("/incidents", p.Handler(s.CreateIncident()))
	r.Handle("/evidence", p.Handler(s.EvidenceUpload()))
	r.Handle("/reports", p.Handler(s.GenerateReport()))
	r.Handle("/supplies/deliveries", p.Handler(s.DeliverSupply()))

	// Consent status and acceptance are split by method on one path; the
	// descriptors share it so the method guard produces the 405s.
	r.Handle("/legal/consent", byMethod(map[string]http.Handler{
		http.MethodGet:     p.Handler(s.ConsentStatus()),
		http.MethodPost:    p.Handler(s.AcceptConsent()),
		http.MethodOptions: p.Handler(s.ConsentStatus()),
	}, p.Handler(s.ConsentStatus())))

	return r
}

func byMethod(handlers map[string]http.Handler, fallback http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.Method]; ok {
			h.ServeHTTP(w, r)
			return
		}
		fallback.ServeHTTP(w, r)
	})
}

// throttle is a process-local inbound limiter sitting ahead of the durable
// per-user limiter. It sheds load before any state is touched.
func throttle(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				pipeline.WriteError(w, middleware.GetReqID(r.Context()),
					overloadedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
