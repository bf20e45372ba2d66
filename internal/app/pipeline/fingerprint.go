package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint computes the canonical SHA-256 digest of a request payload.
//
// The payload is round-tripped through encoding/json so that object keys are
// serialized in sorted order at every nesting level (encoding/json sorts map
// keys); array order is preserved. Two logically-equal payloads therefore
// hash identically regardless of field order, while any differing field,
// value, or array ordering produces a different digest.
func Fingerprint(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("fingerprint marshal: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("fingerprint canonicalize: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("fingerprint canonical marshal: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
