// Package jwtverifier authenticates bearer tokens against the identity
// provider's JWKS endpoint. It satisfies the pipeline's TokenVerifier: the
// returned subject is the internal user id the identity guard resolves to a
// profile. Roles are deliberately not read from token claims; they live in
// the users table so a role change takes effect without reissuing tokens.
package jwtverifier

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/platform/config"
)

// ErrInvalidToken is returned for every verification failure. Callers map it
// to a 401 without learning which check failed.
var ErrInvalidToken = errors.New("invalid token")

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Verifier checks RS256 signatures against a cached JWKS key set. The cache
// refreshes on the configured interval and on an unknown kid, with unknown-kid
// fetches bounded by JWKSMinRefreshInterval so forged kids cannot hammer the
// provider.
type Verifier struct {
	cfg    config.JWTConfig
	client *http.Client
	clock  Clock

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	lastFetch time.Time
	fetching  bool
	fetchDone chan struct{}
}

func New(cfg config.JWTConfig) *Verifier {
	return NewWithOptions(cfg, nil, nil)
}

func NewWithOptions(cfg config.JWTConfig, httpClient *http.Client, clock Clock) *Verifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Verifier{
		cfg:    cfg,
		client: httpClient,
		clock:  clock,
		keys:   map[string]*rsa.PublicKey{},
	}
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Typ string `json:"typ"`
}

type tokenClaims struct {
	Iss string          `json:"iss"`
	Sub string          `json:"sub"`
	Aud json.RawMessage `json:"aud"`
	Exp *int64          `json:"exp"`
	Nbf *int64          `json:"nbf"`
}

// Verify checks the token's RS256 signature and its iss, aud, exp and nbf
// claims, and returns the sub claim on success.
func (v *Verifier) Verify(ctx context.Context, token string) (string, error) {
	hdr, claims, signingInput, sig, err := splitToken(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	if hdr.Alg != "RS256" || hdr.Kid == "" {
		return "", ErrInvalidToken
	}

	if err := v.ensureFreshKeys(ctx, hdr.Kid); err != nil {
		return "", ErrInvalidToken
	}

	pub := v.signingKey(hdr.Kid)
	if pub == nil {
		return "", ErrInvalidToken
	}
	if err := checkSignature(pub, signingInput, sig); err != nil {
		return "", ErrInvalidToken
	}
	if err := v.checkClaims(claims); err != nil {
		return "", ErrInvalidToken
	}
	if claims.Sub == "" {
		return "", ErrInvalidToken
	}
	return claims.Sub, nil
}

func (v *Verifier) checkClaims(c tokenClaims) error {
	now := v.clock.Now()
	skew := v.cfg.ClockSkew

	if c.Iss != v.cfg.Issuer {
		return fmt.Errorf("iss mismatch")
	}
	if !audienceMatches(c.Aud, v.cfg.Audience) {
		return fmt.Errorf("aud mismatch")
	}
	if c.Exp == nil {
		return fmt.Errorf("missing exp")
	}
	if now.After(time.Unix(*c.Exp, 0).Add(skew)) {
		return fmt.Errorf("token expired")
	}
	if c.Nbf != nil && now.Before(time.Unix(*c.Nbf, 0).Add(-skew)) {
		return fmt.Errorf("token not yet valid")
	}
	return nil
}

func (v *Verifier) signingKey(kid string) *rsa.PublicKey {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.keys[kid]
}

// ensureFreshKeys fetches the JWKS when the refresh interval elapsed or the
// kid is not cached. Concurrent callers share a single in-flight fetch.
func (v *Verifier) ensureFreshKeys(ctx context.Context, kid string) error {
	now := v.clock.Now()

	v.mu.Lock()
	stale := !v.lastFetch.IsZero() && v.cfg.JWKSRefreshInterval > 0 &&
		now.Sub(v.lastFetch) >= v.cfg.JWKSRefreshInterval
	unknownKid := v.keys[kid] == nil
	unknownKidAllowed := v.lastFetch.IsZero() || v.cfg.JWKSMinRefreshInterval <= 0 ||
		now.Sub(v.lastFetch) >= v.cfg.JWKSMinRefreshInterval

	if !stale && !(unknownKid && unknownKidAllowed) {
		v.mu.Unlock()
		return nil
	}

	if v.fetching {
		ch := v.fetchDone
		v.mu.Unlock()
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	v.fetching = true
	v.fetchDone = make(chan struct{})
	ch := v.fetchDone
	v.mu.Unlock()

	err := v.fetchKeys(ctx)

	v.mu.Lock()
	v.fetching = false
	close(ch)
	v.mu.Unlock()

	return err
}

func (v *Verifier) fetchKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.JWKSURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("jwks fetch failed: status=%d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	keys, err := decodeKeySet(body)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.keys = keys
	v.lastFetch = v.clock.Now()
	v.mu.Unlock()

	return nil
}

func splitToken(token string) (tokenHeader, tokenClaims, string, []byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return tokenHeader{}, tokenClaims{}, "", nil, fmt.Errorf("bad jwt parts")
	}
	headerB, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return tokenHeader{}, tokenClaims{}, "", nil, err
	}
	claimsB, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return tokenHeader{}, tokenClaims{}, "", nil, err
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return tokenHeader{}, tokenClaims{}, "", nil, err
	}
	var hdr tokenHeader
	if err := json.Unmarshal(headerB, &hdr); err != nil {
		return tokenHeader{}, tokenClaims{}, "", nil, err
	}
	var c tokenClaims
	if err := json.Unmarshal(claimsB, &c); err != nil {
		return tokenHeader{}, tokenClaims{}, "", nil, err
	}
	return hdr, c, parts[0] + "." + parts[1], sig, nil
}

func checkSignature(pub *rsa.PublicKey, signingInput string, sig []byte) error {
	sum := sha256.Sum256([]byte(signingInput))
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, sum[:], sig)
}

// audienceMatches accepts aud as a bare string or an array of strings.
func audienceMatches(raw json.RawMessage, expected string) bool {
	if len(raw) == 0 {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s == expected
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		for _, a := range arr {
			if a == expected {
				return true
			}
		}
	}
	return false
}

type keySet struct {
	Keys []keyEntry `json:"keys"`
}

type keyEntry struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// decodeKeySet keeps the usable RSA entries and errors when none remain, so a
// truncated or foreign key set never silently empties the cache.
func decodeKeySet(b []byte) (map[string]*rsa.PublicKey, error) {
	var set keySet
	if err := json.Unmarshal(b, &set); err != nil {
		return nil, err
	}
	out := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" || k.N == "" || k.E == "" {
			continue
		}
		nb, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, err
		}
		eb, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, err
		}
		e := new(big.Int).SetBytes(eb).Int64()
		if e <= 0 || e > int64(^uint(0)>>1) {
			return nil, fmt.Errorf("invalid jwk exponent")
		}
		out[k.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nb),
			E: int(e),
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable jwks keys")
	}
	return out, nil
}
