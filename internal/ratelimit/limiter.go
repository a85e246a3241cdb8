// Package ratelimit implements the two independent accounting dimensions
// spec'd for the signaling service: concurrent connections per source
// address, and a fixed 60s-window message counter per source address.
// Grounded on the teacher's golang.org/x/time/rate middleware for the
// general shape of per-address accounting, adapted here to hand-rolled
// fixed-window counters since the spec requires exact admit/reject
// semantics ((N+1)-th connection admitted iff N < max) rather than a token
// bucket's smoothed admission.
package ratelimit

import (
	"sync"
	"time"

	"bootstrap-signaling/pkg/clock"
)

const messageWindow = 60 * time.Second

// Limiter tracks per-address connection counts and per-address message
// rate windows. All operations are O(1) under a single mutex per map,
// matching the spec's "one mutation to one map entry" requirement.
type Limiter struct {
	clock clock.Clock

	maxConnections int
	maxMessages    int

	connMu   sync.Mutex
	connsPer map[string]int

	msgMu  sync.Mutex
	msgPer map[string]*messageBucket
}

type messageBucket struct {
	windowStart int64 // ms
	count       int
}

// New builds a Limiter enforcing maxConnections concurrent connections
// and maxMessages messages per 60s window, per source address.
func New(c clock.Clock, maxConnections, maxMessages int) *Limiter {
	return &Limiter{
		clock:          c,
		maxConnections: maxConnections,
		maxMessages:    maxMessages,
		connsPer:       make(map[string]int),
		msgPer:         make(map[string]*messageBucket),
	}
}

// AllowConnection increments addr's connection counter and reports
// whether the result is within the configured maximum. On rejection the
// counter is decremented back, leaving the map in its prior state.
func (l *Limiter) AllowConnection(addr string) bool {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	n := l.connsPer[addr] + 1
	if n > l.maxConnections {
		return false
	}
	l.connsPer[addr] = n
	return true
}

// ReleaseConnection decrements addr's connection counter, removing the
// entry entirely once it reaches zero.
func (l *Limiter) ReleaseConnection(addr string) {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	n, ok := l.connsPer[addr]
	if !ok {
		return
	}
	n--
	if n <= 0 {
		delete(l.connsPer, addr)
		return
	}
	l.connsPer[addr] = n
}

// AllowMessage opens or rolls addr's 60s window and reports whether the
// message is within the configured per-window maximum.
func (l *Limiter) AllowMessage(addr string) bool {
	now := l.clock.NowMS()

	l.msgMu.Lock()
	defer l.msgMu.Unlock()

	b, ok := l.msgPer[addr]
	if !ok || now >= b.windowStart+messageWindow.Milliseconds() {
		b = &messageBucket{windowStart: now, count: 0}
		l.msgPer[addr] = b
	}

	b.count++
	return b.count <= l.maxMessages
}

// ConnectionCount reports the current live connection count for addr,
// used by tests to verify invariant 6 (ConnectionBucket equals live
// session count, absent when zero).
func (l *Limiter) ConnectionCount(addr string) int {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	return l.connsPer[addr]
}
