package idempotency

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turnotrack/shift-ops-api/internal/ports/out/idempotency"
)

// Store is a Postgres implementation of idempotency.Store.
//
// The claim primitive is a conditional insert on the identity's primary key:
// exactly one concurrent caller gets the row, everyone else reads it back and
// branches on its state and fingerprint.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Claim(ctx context.Context, id idempotency.Identity, fingerprint string) (idempotency.Claim, error) {
	if s.pool == nil {
		return idempotency.Claim{}, errors.New("nil postgres pool")
	}

	ct, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_records (user_id, operation, idem_key, fingerprint, state)
		VALUES ($1, $2, $3, $4, 'processing')
		ON CONFLICT (user_id, operation, idem_key) DO NOTHING
	`, string(id.UserID), id.Operation, id.Key, fingerprint)
	if err != nil {
		return idempotency.Claim{}, fmt.Errorf("claim insert: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return idempotency.Claim{Outcome: idempotency.OutcomeClaimed}, nil
	}

	var rec idempotency.Record
	var statusCode *int
	err = s.pool.QueryRow(ctx, `
		SELECT fingerprint, state, status_code, body, created_at
		FROM idempotency_records
		WHERE user_id = $1 AND operation = $2 AND idem_key = $3
	`, string(id.UserID), id.Operation, id.Key).
		Scan(&rec.Fingerprint, &rec.State, &statusCode, &rec.Body, &rec.CreatedAt)
	if err != nil {
		return idempotency.Claim{}, fmt.Errorf("claim read: %w", err)
	}
	if statusCode != nil {
		rec.StatusCode = *statusCode
	}

	switch {
	case rec.Fingerprint != fingerprint:
		return idempotency.Claim{Outcome: idempotency.OutcomePayloadConflict, Stored: rec}, nil
	case rec.State == idempotency.StateProcessing:
		return idempotency.Claim{Outcome: idempotency.OutcomeProcessing, Stored: rec}, nil
	default:
		return idempotency.Claim{Outcome: idempotency.OutcomeReplay, Stored: rec}, nil
	}
}

func (s *Store) Finalize(ctx context.Context, id idempotency.Identity, statusCode int, body []byte) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}

	ct, err := s.pool.Exec(ctx, `
		UPDATE idempotency_records
		SET state = 'completed', status_code = $4, body = $5
		WHERE user_id = $1 AND operation = $2 AND idem_key = $3 AND state = 'processing'
	`, string(id.UserID), id.Operation, id.Key, statusCode, body)
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("finalize without processing claim: %s/%s", id.UserID, id.Operation)
	}
	return nil
}
