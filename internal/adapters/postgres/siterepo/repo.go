package siterepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/siterepo"
)

// Repo is a Postgres implementation of siterepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) GetByID(ctx context.Context, id domain.SiteID) (siterepo.Site, error) {
	if r.pool == nil {
		return siterepo.Site{}, errors.New("nil postgres pool")
	}
	var s siterepo.Site
	var sid int64
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, lat, lng, radius_m FROM sites WHERE id = $1
	`, int64(id)).Scan(&sid, &s.Name, &s.Lat, &s.Lng, &s.RadiusM)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return siterepo.Site{}, siterepo.ErrNotFound
		}
		return siterepo.Site{}, fmt.Errorf("site select: %w", err)
	}
	s.ID = domain.SiteID(sid)
	return s, nil
}

func (r *Repo) SupervisorHasSite(ctx context.Context, supervisor domain.UserID, site domain.SiteID) (bool, error) {
	if r.pool == nil {
		return false, errors.New("nil postgres pool")
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM supervisor_sites WHERE supervisor_id = $1 AND site_id = $2
		)
	`, string(supervisor), int64(site)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("supervisor site select: %w", err)
	}
	return exists, nil
}

// Insert stores a site, used by dev seeding and tests.
func (r *Repo) Insert(ctx context.Context, s siterepo.Site) (domain.SiteID, error) {
	if r.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sites (name, lat, lng, radius_m)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, s.Name, s.Lat, s.Lng, s.RadiusM).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("site insert: %w", err)
	}
	return domain.SiteID(id), nil
}

// Assign records a supervisor's site assignment, used by dev seeding and tests.
func (r *Repo) Assign(ctx context.Context, supervisor domain.UserID, site domain.SiteID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO supervisor_sites (supervisor_id, site_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, string(supervisor), int64(site))
	if err != nil {
		return fmt.Errorf("assignment insert: %w", err)
	}
	return nil
}
