// Package jwks_testutil provides the RSA fixtures the verifier tests need: a
// JWKS endpoint whose key set rotates at runtime, and a minimal RS256 signer.
package jwks_testutil

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"
)

// Keypair is one signing key identified by its kid.
type Keypair struct {
	Kid     string
	Private *rsa.PrivateKey
}

func GenerateRSAKeypair(kid string) (Keypair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Kid: kid, Private: priv}, nil
}

type keyEntry struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type keySet struct {
	Keys []keyEntry `json:"keys"`
}

func encodeKeySet(keys []Keypair) string {
	set := keySet{Keys: make([]keyEntry, 0, len(keys))}
	for _, kp := range keys {
		pub := kp.Private.PublicKey
		// n and e are big-endian unsigned ints, base64url without padding.
		set.Keys = append(set.Keys, keyEntry{
			Kty: "RSA",
			Use: "sig",
			Alg: "RS256",
			Kid: kp.Kid,
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	b, _ := json.Marshal(set)
	return string(b)
}

// NewRotatingJWKSServer starts a JWKS endpoint serving an initially empty key
// set. The returned setter replaces the published keys, which is how rotation
// tests move the provider from one kid to the next.
func NewRotatingJWKSServer() (*httptest.Server, func(keys []Keypair)) {
	var published atomic.Value // string
	published.Store(`{"keys":[]}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(published.Load().(string)))
	}))

	return srv, func(keys []Keypair) {
		published.Store(encodeKeySet(keys))
	}
}

// MintRS256JWT signs a token with the keypair. aud may be a string or
// []string; nbf is emitted only when nbfDelta is non-nil.
func MintRS256JWT(kp Keypair, iss string, aud any, sub string, now time.Time, expDelta time.Duration, nbfDelta *time.Duration) (string, error) {
	header := map[string]any{
		"alg": "RS256",
		"typ": "JWT",
		"kid": kp.Kid,
	}
	claims := map[string]any{
		"iss": iss,
		"aud": aud,
		"sub": sub,
		"exp": now.Add(expDelta).Unix(),
	}
	if nbfDelta != nil {
		claims["nbf"] = now.Add(*nbfDelta).Unix()
	}

	hb, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	cb, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString(hb) + "." + enc.EncodeToString(cb)
	sum := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, kp.Private, crypto.SHA256, sum[:])
	if err != nil {
		return "", err
	}
	return signingInput + "." + enc.EncodeToString(sig), nil
}
