package shiftrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/turnotrack/shift-ops-api/internal/adapters/postgres"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/shiftrepo"
)

// Repo is a Postgres implementation of shiftrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, s shiftrepo.Shift) (domain.ShiftID, error) {
	if r.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO shifts (employee_id, site_id, state, start_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id
	`, string(s.EmployeeID), int64(s.SiteID), string(s.State), s.StartAt.UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("shift insert: %w", err)
	}
	return domain.ShiftID(id), nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.ShiftID) (shiftrepo.Shift, error) {
	if r.pool == nil {
		return shiftrepo.Shift{}, errors.New("nil postgres pool")
	}
	var s shiftrepo.Shift
	var employeeID, state string
	var siteID int64
	var approvedBy, rejectedBy *string
	err := r.pool.QueryRow(ctx, `
		SELECT id, employee_id, site_id, state, start_at, end_at, end_lat, end_lng,
		       approved_by, rejected_by, created_at, updated_at
		FROM shifts
		WHERE id = $1
	`, int64(id)).Scan(
		&s.ID, &employeeID, &siteID, &state, &s.StartAt, &s.EndAt, &s.EndLat, &s.EndLng,
		&approvedBy, &rejectedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shiftrepo.Shift{}, shiftrepo.ErrNotFound
		}
		return shiftrepo.Shift{}, fmt.Errorf("shift select: %w", err)
	}
	s.EmployeeID = domain.UserID(employeeID)
	s.SiteID = domain.SiteID(siteID)
	s.State = domain.ShiftState(state)
	if approvedBy != nil {
		v := domain.UserID(*approvedBy)
		s.ApprovedBy = &v
	}
	if rejectedBy != nil {
		v := domain.UserID(*rejectedBy)
		s.RejectedBy = &v
	}
	return s, nil
}

func (r *Repo) End(ctx context.Context, id domain.ShiftID, employee domain.UserID, at time.Time, lat, lng float64) (bool, error) {
	if r.pool == nil {
		return false, errors.New("nil postgres pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE shifts
		SET state = 'finalized', end_at = $3, end_lat = $4, end_lng = $5, updated_at = $3
		WHERE id = $1 AND employee_id = $2 AND state = 'active'
	`, int64(id), string(employee), at.UTC(), lat, lng)
	if err != nil {
		return false, fmt.Errorf("shift end: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) Approve(ctx context.Context, id domain.ShiftID, approver domain.UserID, at time.Time) (bool, error) {
	if r.pool == nil {
		return false, errors.New("nil postgres pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE shifts
		SET state = 'approved', approved_by = $2, rejected_by = NULL, updated_at = $3
		WHERE id = $1 AND state = 'finalized'
	`, int64(id), string(approver), at.UTC())
	if err != nil {
		return false, fmt.Errorf("shift approve: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) AddPhoto(ctx context.Context, p shiftrepo.Photo) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO shift_photos (shift_id, user_id, photo_type, storage_path,
			lat, lng, accuracy, sha256, mime_type, file_size, captured_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, int64(p.ShiftID), string(p.UserID), string(p.Type), p.StoragePath,
		p.Lat, p.Lng, p.Accuracy, p.SHA256, p.MIMEType, p.FileSize,
		p.CapturedAt.UTC(), p.CreatedAt.UTC())
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok {
			switch pe.Code {
			case postgres.UniqueViolationCode:
				return shiftrepo.ErrDuplicatePhoto
			case postgres.ForeignKeyViolationCode:
				return shiftrepo.ErrNotFound
			}
		}
		return fmt.Errorf("photo insert: %w", err)
	}
	return nil
}

func (r *Repo) CountPhotos(ctx context.Context, id domain.ShiftID, t domain.PhotoType) (int, error) {
	if r.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM shift_photos WHERE shift_id = $1 AND photo_type = $2
	`, int64(id), string(t)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("photo count: %w", err)
	}
	return n, nil
}
