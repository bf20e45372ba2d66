package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turnotrack/shift-ops-api/internal/ports/out/auditlog"
)

// Sink is a Postgres implementation of auditlog.Sink.
type Sink struct {
	pool *pgxpool.Pool
}

func NewSink(pool *pgxpool.Pool) *Sink {
	return &Sink{pool: pool}
}

func (s *Sink) Write(ctx context.Context, e auditlog.Entry) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}

	var contextJSON []byte
	if e.Context != nil {
		b, err := json.Marshal(e.Context)
		if err != nil {
			return fmt.Errorf("audit context marshal: %w", err)
		}
		contextJSON = b
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (user_id, action, context, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, string(e.UserID), e.Action, contextJSON, e.RequestID, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("audit insert: %w", err)
	}
	return nil
}
