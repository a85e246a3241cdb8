package rendezvous

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bootstrap-signaling/internal/domain"
	"bootstrap-signaling/pkg/circuitbreaker"
	"bootstrap-signaling/pkg/retry"
)

const redisMirrorTTL = 5 * time.Minute

// RedisMirror is a best-effort, non-authoritative write-through copy of
// the in-memory Registry. Adapted from the teacher's SharedPeerRegistry
// (internal/infrastructure/distributed/peer_registry.go): same
// SET-with-TTL-then-SAdd-to-room-set shape, but with no locking, no
// instance bookkeeping, and no read path back into the signaling
// service — discover/register/prune never consult it, so a Redis outage
// degrades logging only, never correctness. Writes go through a retry
// (transient network blips) wrapped in a circuit breaker (a Redis outage
// stops retrying on every single register call and fails fast instead),
// both adapted from the teacher's pkg/retry and pkg/circuitbreaker.
type RedisMirror struct {
	client  *redis.Client
	logger  *zap.SugaredLogger
	prefix  string
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config
}

// NewRedisMirror builds a RedisMirror over an already-connected client.
func NewRedisMirror(client *redis.Client, logger *zap.SugaredLogger) *RedisMirror {
	breakerCfg := circuitbreaker.DefaultConfig()
	breakerCfg.FailureThreshold = 5
	breakerCfg.Timeout = 30 * time.Second

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 2
	retryCfg.InitialDelay = 50 * time.Millisecond
	// redis.Nil means the mirror itself never wrote the key (e.g. a
	// concurrent prune raced the delete); retrying it wastes the budget
	// on a condition backoff can never fix.
	retryCfg.NonRetryableErrors = []error{redis.Nil}

	breaker := circuitbreaker.New(breakerCfg)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("rendezvous mirror circuit breaker state changed", "from", from, "to", to)
	})

	return &RedisMirror{
		client:  client,
		logger:  logger,
		prefix:  "bootstrap-signaling:rendezvous:",
		breaker: breaker,
		retry:   retryCfg,
	}
}

// Healthy reports whether the mirror's circuit breaker currently allows
// writes through. An open breaker means Redis has been failing past
// FailureThreshold and is given up on until Timeout elapses, which is a
// better /ready signal than a fresh Ping: probing Redis directly while
// the breaker is open just re-triggers the same timeout the breaker
// exists to avoid.
func (m *RedisMirror) Healthy() bool {
	return m.breaker.GetState() != circuitbreaker.StateOpen
}

// Put best-effort-writes rec to Redis and adds it to its room's set.
func (m *RedisMirror) Put(rec *domain.RendezvousRecord) {
	key := domain.NewRoomKey(rec.Namespace, rec.Room)
	data, err := json.Marshal(rec)
	if err != nil {
		m.logger.Warnw("rendezvous mirror marshal failed", "peer_id", rec.PeerID, "error", err)
		return
	}

	err = m.breaker.Execute(context.Background(), func() error {
		return retry.Retry(context.Background(), m.retry, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			if err := m.client.Set(ctx, m.peerKey(key, rec.PeerID), data, redisMirrorTTL).Err(); err != nil {
				return err
			}
			roomKey := m.roomKey(key)
			if err := m.client.SAdd(ctx, roomKey, rec.PeerID).Err(); err != nil {
				return err
			}
			return m.client.Expire(ctx, roomKey, redisMirrorTTL).Err()
		})
	})
	if err != nil {
		m.logger.Warnw("rendezvous mirror write failed", "peer_id", rec.PeerID, "error", err)
	}
}

// Delete best-effort-removes peerID from Redis.
func (m *RedisMirror) Delete(key domain.RoomKey, peerID string) {
	err := m.breaker.Execute(context.Background(), func() error {
		return retry.Retry(context.Background(), m.retry, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			if err := m.client.Del(ctx, m.peerKey(key, peerID)).Err(); err != nil {
				return err
			}
			return m.client.SRem(ctx, m.roomKey(key), peerID).Err()
		})
	})
	if err != nil {
		m.logger.Warnw("rendezvous mirror delete failed", "peer_id", peerID, "error", err)
	}
}

func (m *RedisMirror) peerKey(key domain.RoomKey, peerID string) string {
	return m.prefix + key.String() + ":" + peerID
}

func (m *RedisMirror) roomKey(key domain.RoomKey) string {
	return m.prefix + key.String() + ":peers"
}
