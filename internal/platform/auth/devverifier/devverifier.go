package devverifier

import (
	"context"
	"strings"

	"github.com/turnotrack/shift-ops-api/internal/platform/auth/jwtverifier"
)

// Verifier is a local/dev-only auth shim: the bearer token IS the subject,
// no signature involved. It lets local Docker workflows skip standing up an
// OIDC provider + JWKS. Do NOT use this in production deployments.
type Verifier struct {
	defaultSubject string
}

func New(defaultSubject string) *Verifier {
	return &Verifier{defaultSubject: defaultSubject}
}

func (v *Verifier) Verify(_ context.Context, token string) (string, error) {
	sub := strings.TrimSpace(token)
	if sub == "" {
		sub = v.defaultSubject
	}
	if sub == "" {
		return "", jwtverifier.ErrInvalidToken
	}
	return sub, nil
}
