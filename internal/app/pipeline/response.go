package pipeline

import (
	"encoding/json"
	"net/http"

	"github.com/oapi-codegen/nullable"

	"github.com/turnotrack/shift-ops-api/internal/app/apperr"
)

// ErrorBody is the client-facing error shape inside the envelope.
type ErrorBody struct {
	Code      int                               `json:"code"`
	Message   string                            `json:"message"`
	Category  apperr.Category                   `json:"category"`
	RequestID string                            `json:"request_id"`
	Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
}

// Envelope is the uniform response shape for every endpoint.
type Envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data"`
	Error     *ErrorBody `json:"error"`
	RequestID string     `json:"request_id"`
}

func successEnvelope(requestID string, data any) Envelope {
	return Envelope{Success: true, Data: data, Error: nil, RequestID: requestID}
}

func failureEnvelope(requestID string, ae *apperr.Error) Envelope {
	body := &ErrorBody{
		Code:      ae.Code,
		Message:   ae.Message,
		Category:  ae.Category,
		RequestID: requestID,
	}
	if ae.Details != nil {
		body.Details = nullable.NewNullableWithValue(ae.Details)
	}
	return Envelope{Success: false, Data: nil, Error: body, RequestID: requestID}
}

func setCommonHeaders(h http.Header, requestID string) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "authorization, content-type, idempotency-key")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Expose-Headers", "X-Request-Id")
	h.Set("Vary", "Origin")
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	h.Set("X-Request-Id", requestID)
}

// writeRaw emits pre-marshaled envelope bytes. Replays go through here so the
// body is byte-identical to the original delivery.
func writeRaw(w http.ResponseWriter, status int, requestID string, body []byte) {
	setCommonHeaders(w.Header(), requestID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writePreflight(w http.ResponseWriter, requestID string) {
	setCommonHeaders(w.Header(), requestID)
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNoContent)
}

// WriteError emits a failure envelope outside the orchestrated flow (used by
// router-level middleware that rejects before an operation is reached).
func WriteError(w http.ResponseWriter, requestID string, ae *apperr.Error) {
	body, err := json.Marshal(failureEnvelope(requestID, ae))
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeRaw(w, ae.Code, requestID, body)
}
