package validation

import (
	"fmt"
	"regexp"
)

// PeerIDRegex validates peer ID format
var PeerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidatePeerID validates peer ID
func ValidatePeerID(peerID string) error {
	if peerID == "" {
		return fmt.Errorf("peer ID is required")
	}
	if len(peerID) > 100 {
		return fmt.Errorf("peer ID is too long (max 100 characters)")
	}
	if !PeerIDRegex.MatchString(peerID) {
		return fmt.Errorf("invalid peer ID format")
	}
	return nil
}
