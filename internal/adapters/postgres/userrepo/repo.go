package userrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/userrepo"
)

// Repo is a Postgres implementation of userrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	if r.pool == nil {
		return domain.User{}, errors.New("nil postgres pool")
	}
	var role string
	err := r.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, string(id)).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, userrepo.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("user select: %w", err)
	}
	return domain.User{ID: id, Role: domain.Role(role)}, nil
}

// Upsert stores a user profile, used by dev seeding and tests.
func (r *Repo) Upsert(ctx context.Context, u domain.User) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, role) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role
	`, string(u.ID), string(u.Role))
	if err != nil {
		return fmt.Errorf("user upsert: %w", err)
	}
	return nil
}
