package domain

// RendezvousRecord is a discoverable, TTL-bound advertisement of a peer.
type RendezvousRecord struct {
	PeerID    string            `json:"peerId"`
	Namespace string            `json:"namespace"`
	Room      string            `json:"room"`
	Addresses []string          `json:"addresses,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	SeenAt    int64             `json:"seenAt"`
	ExpiresAt int64             `json:"expiresAt"`

	// RegistrationToken identifies this particular register call, so a
	// caller can tell a fresh registration from a refreshed one without
	// comparing timestamps.
	RegistrationToken string `json:"registrationToken"`
}

// Expired reports whether the record's TTL has elapsed as of nowMS.
func (r *RendezvousRecord) Expired(nowMS int64) bool {
	return r.ExpiresAt <= nowMS
}
