package userrepo

import (
	"context"
	"errors"

	"github.com/turnotrack/shift-ops-api/internal/domain"
)

var (
	// ErrNotFound indicates no internal profile exists for the subject.
	ErrNotFound = errors.New("user not found")
)

// Repository resolves internal user profiles for authenticated subjects.
type Repository interface {
	GetByID(ctx context.Context, id domain.UserID) (domain.User, error)
}
