// Package auth implements the Credential Verifier: constant-time
// validation of the shared bearer secret configured for the signaling
// and rendezvous-register endpoints.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// Verifier holds the hex-encoded SHA-256 digest of the shared secret.
// An empty digest disables authentication entirely.
type Verifier struct {
	digest []byte // decoded, nil when auth is disabled
}

// NewVerifier builds a Verifier from a hex-encoded SHA-256 digest. An
// empty or malformed digest disables auth (all requests pass), matching
// spec §4.1's "no digest configured" case.
func NewVerifier(hexDigest string) *Verifier {
	hexDigest = strings.TrimSpace(hexDigest)
	if hexDigest == "" {
		return &Verifier{digest: nil}
	}
	decoded, err := hex.DecodeString(hexDigest)
	if err != nil {
		return &Verifier{digest: nil}
	}
	return &Verifier{digest: decoded}
}

// Enabled reports whether a digest is configured.
func (v *Verifier) Enabled() bool {
	return v.digest != nil
}

// Verify returns true when no digest is configured, or when raw is
// non-empty and its SHA-256 digest matches the configured one under a
// constant-time comparison. Length mismatches fail without taking an
// early-exit path that would leak timing.
func (v *Verifier) Verify(raw string) bool {
	if v.digest == nil {
		return true
	}
	if raw == "" {
		return false
	}

	sum := sha256.Sum256([]byte(raw))

	if len(sum) != len(v.digest) {
		// sum is always 32 bytes, so this triggers only when the
		// configured hex digest decodes to a different length; it still
		// runs a compare so this path does comparable work.
		subtle.ConstantTimeCompare(sum[:], sum[:])
		return false
	}

	return subtle.ConstantTimeCompare(sum[:], v.digest) == 1
}

// Digest returns the hex-encoded SHA-256 digest of raw, the format
// expected by NewVerifier and the SIGNAL_TOKEN_SHA256 setting.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ExtractToken pulls the bearer token from the Authorization header,
// falling back to the "token" query parameter, per spec §4.1.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "Bearer "
		if strings.HasPrefix(h, prefix) {
			return strings.TrimPrefix(h, prefix)
		}
	}
	return r.URL.Query().Get("token")
}
