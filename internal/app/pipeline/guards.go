package pipeline

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/turnotrack/shift-ops-api/internal/app/apperr"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/legalrepo"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/userrepo"
)

// TokenVerifier authenticates a bearer token and returns the subject it was
// issued for.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// guard is one admission check. Guards run in a fixed order and the first
// rejection short-circuits the chain; later guards may rely on state the
// earlier ones attached to req.
type guard interface {
	check(ctx context.Context, r *http.Request, req *Request) *apperr.Error
}

type methodGuard struct {
	allowed []string
}

func (g methodGuard) check(_ context.Context, r *http.Request, _ *Request) *apperr.Error {
	if slices.Contains(g.allowed, r.Method) {
		return nil
	}
	return apperr.Validation(http.StatusMethodNotAllowed, "method not allowed")
}

// identityGuard authenticates the bearer token and resolves the internal
// profile. Authentication failures are 401; a valid token whose subject has
// no profile authenticated fine but is not permitted here, so that is a 403.
type identityGuard struct {
	verifier TokenVerifier
	users    userrepo.Repository
}

func (g identityGuard) check(ctx context.Context, r *http.Request, req *Request) *apperr.Error {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return apperr.Unauthorized("missing bearer token")
	}
	token := strings.TrimSpace(auth[len(prefix):])
	if token == "" {
		return apperr.Unauthorized("missing bearer token")
	}
	subject, err := g.verifier.Verify(ctx, token)
	if err != nil {
		return apperr.Unauthorized("invalid token")
	}
	user, err := g.users.GetByID(ctx, userIDFromSubject(subject))
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return apperr.Forbidden("unknown user")
		}
		return apperr.System("user lookup failed", err)
	}
	req.Actor = &user
	return nil
}

type roleGuard struct {
	allowed []domain.Role
}

func (g roleGuard) check(_ context.Context, _ *http.Request, req *Request) *apperr.Error {
	if req.Actor == nil {
		return apperr.Unauthorized("missing identity")
	}
	if slices.Contains(g.allowed, req.Actor.Role) {
		return nil
	}
	return apperr.Forbidden("insufficient role")
}

// consentGuard requires the actor to have accepted the currently-active
// legal terms. Absence of any active term is an operational fault, not a
// client one.
type consentGuard struct {
	legal legalrepo.Repository
}

func (g consentGuard) check(ctx context.Context, _ *http.Request, req *Request) *apperr.Error {
	if req.Actor == nil {
		return apperr.Unauthorized("missing identity")
	}
	term, err := g.legal.ActiveTerm(ctx)
	if err != nil {
		if errors.Is(err, legalrepo.ErrNoActiveTerm) {
			return apperr.New(http.StatusServiceUnavailable, apperr.CategorySystem, "legal terms unavailable")
		}
		return apperr.System("legal term lookup failed", err)
	}
	_, accepted, err := g.legal.LatestAcceptance(ctx, req.Actor.ID, term.ID)
	if err != nil {
		return apperr.System("consent lookup failed", err)
	}
	if !accepted {
		return apperr.Forbidden("legal consent required").WithDetails(map[string]any{
			"term_code":    term.Code,
			"term_version": term.Version,
		})
	}
	return nil
}
