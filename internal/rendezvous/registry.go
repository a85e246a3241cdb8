// Package rendezvous implements the TTL-indexed peer discovery registry:
// an in-memory index of (namespace, room) -> peer_id -> record, with
// register/discover/remove/prune operations. Grounded on the teacher's
// pkg/cache TTL cache for the prune-on-read-and-on-schedule pattern, and
// on internal/infrastructure/distributed/peer_registry.go for the
// register/ttl/addresses shape (the Redis mirror in redis_mirror.go
// adapts that file's SET+SAdd+Expire sequence).
package rendezvous

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"bootstrap-signaling/internal/domain"
	"bootstrap-signaling/pkg/clock"
)

const DefaultTTLMillis = 60_000

// Mirror is an optional write-through sink for rendezvous records. It is
// never authoritative: registry reads never consult it, and its errors
// never fail a register/remove call.
type Mirror interface {
	Put(rec *domain.RendezvousRecord)
	Delete(key domain.RoomKey, peerID string)
}

// Registry holds rendezvous records for every (namespace, room).
type Registry struct {
	clock  clock.Clock
	mirror Mirror

	mu    sync.RWMutex
	rooms map[domain.RoomKey]map[string]*domain.RendezvousRecord
}

// New builds an empty Registry. mirror may be nil to disable the
// optional write-through sink.
func New(c clock.Clock, mirror Mirror) *Registry {
	return &Registry{
		clock:  c,
		mirror: mirror,
		rooms:  make(map[domain.RoomKey]map[string]*domain.RendezvousRecord),
	}
}

// Register stores or replaces the record for peerID in (namespace, room).
// ttlMillis <= 0 falls back to DefaultTTLMillis.
func (r *Registry) Register(namespace, room, peerID string, addresses []string, ttlMillis int64, metadata map[string]string) *domain.RendezvousRecord {
	if ttlMillis <= 0 {
		ttlMillis = DefaultTTLMillis
	}
	key := domain.NewRoomKey(namespace, room)
	now := r.clock.NowMS()

	rec := &domain.RendezvousRecord{
		PeerID:            peerID,
		Namespace:         key.Namespace,
		Room:              key.Room,
		Addresses:         addresses,
		Metadata:          metadata,
		SeenAt:            now,
		ExpiresAt:         now + ttlMillis,
		RegistrationToken: uuid.NewString(),
	}

	r.mu.Lock()
	peers, ok := r.rooms[key]
	if !ok {
		peers = make(map[string]*domain.RendezvousRecord)
		r.rooms[key] = peers
	}
	peers[peerID] = rec
	r.mu.Unlock()

	if r.mirror != nil {
		r.mirror.Put(rec)
	}
	return rec
}

// Discover prunes expired entries in (namespace, room) then returns up
// to limit records sorted by SeenAt descending. limit <= 0 means
// unlimited.
func (r *Registry) Discover(namespace, room string, limit int) []*domain.RendezvousRecord {
	key := domain.NewRoomKey(namespace, room)
	r.pruneRoom(key, r.clock.NowMS())

	r.mu.RLock()
	peers := r.rooms[key]
	out := make([]*domain.RendezvousRecord, 0, len(peers))
	for _, rec := range peers {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SeenAt > out[j].SeenAt })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RemovePeer removes peerID from (namespace, room), collapsing the room
// entry if it becomes empty. Returns whether an entry was removed.
func (r *Registry) RemovePeer(namespace, room, peerID string) bool {
	key := domain.NewRoomKey(namespace, room)

	r.mu.Lock()
	removed := false
	if peers, ok := r.rooms[key]; ok {
		if _, exists := peers[peerID]; exists {
			delete(peers, peerID)
			removed = true
			if len(peers) == 0 {
				delete(r.rooms, key)
			}
		}
	}
	r.mu.Unlock()

	if removed && r.mirror != nil {
		r.mirror.Delete(key, peerID)
	}
	return removed
}

// PruneExpired removes every record across every room with
// ExpiresAt <= now, deleting rooms left empty.
func (r *Registry) PruneExpired(now int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, peers := range r.rooms {
		for peerID, rec := range peers {
			if rec.Expired(now) {
				delete(peers, peerID)
			}
		}
		if len(peers) == 0 {
			delete(r.rooms, key)
		}
	}
}

// pruneRoom removes expired records scoped to a single room, used by
// Discover to satisfy "prunes expired entries first" without taking the
// global prune's full-map pass.
func (r *Registry) pruneRoom(key domain.RoomKey, now int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers, ok := r.rooms[key]
	if !ok {
		return
	}
	for peerID, rec := range peers {
		if rec.Expired(now) {
			delete(peers, peerID)
		}
	}
	if len(peers) == 0 {
		delete(r.rooms, key)
	}
}
