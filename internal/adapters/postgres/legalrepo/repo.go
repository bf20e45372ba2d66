package legalrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/legalrepo"
)

// Repo is a Postgres implementation of legalrepo.Repository. A partial unique
// index on legal_terms guarantees at most one active version.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) ActiveTerm(ctx context.Context) (legalrepo.Term, error) {
	if r.pool == nil {
		return legalrepo.Term{}, errors.New("nil postgres pool")
	}
	var t legalrepo.Term
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, title, version, content, is_active
		FROM legal_terms
		WHERE is_active
	`).Scan(&id, &t.Code, &t.Title, &t.Version, &t.Content, &t.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return legalrepo.Term{}, legalrepo.ErrNoActiveTerm
		}
		return legalrepo.Term{}, fmt.Errorf("active term select: %w", err)
	}
	t.ID = domain.LegalTermID(id)
	return t, nil
}

func (r *Repo) LatestAcceptance(ctx context.Context, user domain.UserID, term domain.LegalTermID) (legalrepo.Acceptance, bool, error) {
	if r.pool == nil {
		return legalrepo.Acceptance{}, false, errors.New("nil postgres pool")
	}
	a := legalrepo.Acceptance{UserID: user, TermID: term}
	err := r.pool.QueryRow(ctx, `
		SELECT accepted_at, ip_address, user_agent
		FROM legal_acceptances
		WHERE user_id = $1 AND term_id = $2
	`, string(user), int64(term)).Scan(&a.AcceptedAt, &a.IPAddress, &a.UserAgent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return legalrepo.Acceptance{}, false, nil
		}
		return legalrepo.Acceptance{}, false, fmt.Errorf("acceptance select: %w", err)
	}
	return a, true, nil
}

func (r *Repo) Accept(ctx context.Context, a legalrepo.Acceptance) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO legal_acceptances (user_id, term_id, accepted_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, term_id) DO UPDATE
		SET accepted_at = EXCLUDED.accepted_at,
		    ip_address = EXCLUDED.ip_address,
		    user_agent = EXCLUDED.user_agent
	`, string(a.UserID), int64(a.TermID), a.AcceptedAt.UTC(), a.IPAddress, a.UserAgent)
	if err != nil {
		return fmt.Errorf("acceptance upsert: %w", err)
	}
	return nil
}

// InsertTerm stores a terms version, used by dev seeding and tests.
// Activating a term deactivates the previous active one first.
func (r *Repo) InsertTerm(ctx context.Context, t legalrepo.Term) (domain.LegalTermID, error) {
	if r.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	var id int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if t.Active {
			if _, err := tx.Exec(ctx, `UPDATE legal_terms SET is_active = FALSE WHERE is_active`); err != nil {
				return err
			}
		}
		return tx.QueryRow(ctx, `
			INSERT INTO legal_terms (code, title, version, content, is_active)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, t.Code, t.Title, t.Version, t.Content, t.Active).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("term insert: %w", err)
	}
	return domain.LegalTermID(id), nil
}
