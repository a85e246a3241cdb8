// Package idgen generates collision-resistant identifiers used when a
// client does not supply its own peer id, and hashes operator secrets for
// the credential verifier.
package idgen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"bootstrap-signaling/pkg/clock"
)

// PeerID generates an id of the form "peer-{ms}-{random-hex}".
func PeerID(c clock.Clock) string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return fmt.Sprintf("peer-%d-%s", c.NowMS(), hex.EncodeToString(b))
}

// SHA256Hex returns the lowercase hex-encoded SHA-256 digest of s.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
