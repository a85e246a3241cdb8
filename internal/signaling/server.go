// Package signaling implements the Signaling Endpoint: the /signal
// upgrade handshake, per-message dispatch (heartbeat, telemetry,
// relay), and teardown. Grounded on the teacher's
// internal/infrastructure/signal/websocket_server.go for the
// upgrade-then-reader-goroutine-then-select-loop shape; the dispatch
// switch here replaces join_stream/offer/answer/ice_candidate/
// metrics_update with heartbeat/telemetry/relay per this service's
// wire protocol.
package signaling

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bootstrap-signaling/internal/auth"
	"bootstrap-signaling/internal/domain"
	"bootstrap-signaling/internal/roomhub"
	"bootstrap-signaling/pkg/clock"
	"bootstrap-signaling/pkg/idgen"
	"bootstrap-signaling/pkg/tracing"
)

// RateLimiter is the subset of ratelimit.Limiter the endpoint depends on.
type RateLimiter interface {
	AllowConnection(addr string) bool
	ReleaseConnection(addr string)
	AllowMessage(addr string) bool
}

// Verifier is the subset of auth.Verifier the endpoint depends on.
type Verifier interface {
	Verify(raw string) bool
}

// Hub is the subset of roomhub.Hub the endpoint depends on.
type Hub interface {
	Join(namespace, room string, member roomhub.Member)
	Leave(namespace, room, peerID string)
	Fanout(namespace, room, senderPeerID string, frame []byte)
}

// Registry is the subset of rendezvous.Registry the endpoint depends on.
type Registry interface {
	Register(namespace, room, peerID string, addresses []string, ttlMillis int64, metadata map[string]string) *domain.RendezvousRecord
	RemovePeer(namespace, room, peerID string) bool
}

// Metrics is the subset of metrics.Metrics the endpoint depends on.
type Metrics interface {
	IncConnections()
	IncActive()
	DecActive()
	IncMessages()
	IncAuthFailure()
	IncRateLimited()
	IncRelayUsage()
	IncICEState(state string)
	IncFailureReason(reason string)
	IncRegionCarrier(region, carrier string)
}

// Config carries the handshake/session tunables from spec §6.
type Config struct {
	HandshakeTimeout time.Duration
	SendBufferSize   int
	DrainTimeout     time.Duration
	RendezvousTTLMs  int64
}

// Endpoint wires the handshake pipeline and per-message dispatch.
type Endpoint struct {
	limiter  RateLimiter
	verifier Verifier
	hub      Hub
	registry Registry
	metrics  Metrics
	clock    clock.Clock
	logger   *zap.SugaredLogger
	cfg      Config
	upgrader websocket.Upgrader
}

// New builds an Endpoint.
func New(limiter RateLimiter, verifier Verifier, hub Hub, registry Registry, m Metrics, c clock.Clock, logger *zap.SugaredLogger, cfg Config) *Endpoint {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 32
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if cfg.RendezvousTTLMs <= 0 {
		cfg.RendezvousTTLMs = 60_000
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	return &Endpoint{
		limiter:  limiter,
		verifier: verifier,
		hub:      hub,
		registry: registry,
		metrics:  m,
		clock:    c,
		logger:   logger,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ClientAddress extracts the first hop of X-Forwarded-For if present,
// else the host part of the socket remote address (port stripped), per
// spec §4.5 step 1.
func ClientAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// handshakeOutcome carries the result of the rate-check/auth/param-read
// portion of the handshake pipeline back to ServeHTTP.
type handshakeOutcome struct {
	status    int
	peerID    string
	namespace string
	room      string
}

// ServeHTTP runs the handshake pipeline for GET /signal. Rate-checking,
// auth, and param normalization run on a timer: if they don't complete
// within cfg.HandshakeTimeout, the request is aborted with 408 rather
// than left hanging. The timeout only guards this pre-upgrade portion —
// once the connection is hijacked by the websocket upgrade there is no
// HTTP status left to send.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientAddr := ClientAddress(r)

	ctx, cancel := context.WithTimeout(r.Context(), e.cfg.HandshakeTimeout)
	defer cancel()

	outcome := make(chan handshakeOutcome)
	go e.admit(ctx, r, clientAddr, outcome)

	var result handshakeOutcome
	select {
	case result = <-outcome:
	case <-ctx.Done():
		e.logger.Warnw("signal handshake timed out", "client_address", clientAddr)
		http.Error(w, "handshake timeout", http.StatusRequestTimeout)
		return
	}

	if result.status != http.StatusOK {
		http.Error(w, http.StatusText(result.status), result.status)
		return
	}

	e.completeHandshake(w, r, clientAddr, result)
}

// admit runs the rate-check, auth, and namespace/room/peerId normalization
// steps, sending the outcome back on outcome. If ctx expires before the
// result can be delivered, it releases any connection slot it reserved so
// a timed-out handshake never leaks one.
func (e *Endpoint) admit(ctx context.Context, r *http.Request, clientAddr string, outcome chan<- handshakeOutcome) {
	if !e.limiter.AllowConnection(clientAddr) {
		e.metrics.IncRateLimited()
		select {
		case outcome <- handshakeOutcome{status: http.StatusTooManyRequests}:
		case <-ctx.Done():
		}
		return
	}

	token := auth.ExtractToken(r)
	if !e.verifier.Verify(token) {
		e.limiter.ReleaseConnection(clientAddr)
		e.metrics.IncAuthFailure()
		e.logger.Infow("peer.auth_failed", "client_address", clientAddr)
		select {
		case outcome <- handshakeOutcome{status: http.StatusUnauthorized}:
		case <-ctx.Done():
		}
		return
	}

	q := r.URL.Query()
	key := domain.NewRoomKey(q.Get("namespace"), q.Get("room"))
	peerID := q.Get("peerId")
	if peerID == "" {
		peerID = idgen.PeerID(e.clock)
	}

	result := handshakeOutcome{status: http.StatusOK, peerID: peerID, namespace: key.Namespace, room: key.Room}
	select {
	case outcome <- result:
	case <-ctx.Done():
		e.limiter.ReleaseConnection(clientAddr)
	}
}

// completeHandshake upgrades the connection and admits the session to
// the Room Hub and Rendezvous Registry.
func (e *Endpoint) completeHandshake(w http.ResponseWriter, r *http.Request, clientAddr string, result handshakeOutcome) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.limiter.ReleaseConnection(clientAddr)
		e.logger.Warnw("signal upgrade failed", "error", err)
		return
	}

	peerID, namespace, room := result.peerID, result.namespace, result.room

	now := e.clock.Now()
	session := newSession(conn, peerID, namespace, room, clientAddr, now, e.cfg.SendBufferSize, e.cfg.DrainTimeout)
	session.setState(StateAdmitted)

	e.hub.Join(namespace, room, session)
	e.registry.Register(namespace, room, peerID, []string{clientAddr}, e.cfg.RendezvousTTLMs, map[string]string{"transport": "websocket"})

	e.metrics.IncConnections()
	e.metrics.IncActive()
	e.logger.Infow("peer.connected", "peer_id", peerID, "namespace", namespace, "room", room, "client_address", clientAddr)

	go session.runWriter()
	session.Enqueue(welcomeEnvelope(peerID, namespace, room, now))
	session.setState(StateActive)

	e.serveSession(session)
}

// serveSession runs the reader goroutine + dispatch select loop, and
// performs teardown exactly once when the session ends.
func (e *Endpoint) serveSession(s *Session) {
	messageChan := make(chan []byte, 8)
	errorChan := make(chan error, 1)

	go func() {
		for {
			_, data, err := s.conn.ReadMessage()
			if err != nil {
				errorChan <- err
				return
			}
			messageChan <- data
		}
	}()

	for {
		select {
		case raw := <-messageChan:
			e.dispatch(s, raw)
		case <-errorChan:
			e.teardown(s)
			return
		case <-s.Done():
			e.teardown(s)
			return
		}
	}
}

// teardown removes the session from the hub/registry and releases its
// connection slot. It runs once per session: serveSession returns right
// after calling it. Session.once guards only the Close call inside it.
func (e *Endpoint) teardown(s *Session) {
	s.Close()
	s.setState(StateClosed)
	e.hub.Leave(s.namespace, s.room, s.peerID)
	e.registry.RemovePeer(s.namespace, s.room, s.peerID)
	e.limiter.ReleaseConnection(s.clientAddress)
	e.metrics.DecActive()
	s.conn.Close()
	e.logger.Infow("peer.disconnected", "peer_id", s.peerID, "namespace", s.namespace, "room", s.room)
}

// dispatch rate-checks, parses, and routes a single inbound frame.
func (e *Endpoint) dispatch(s *Session, raw []byte) {
	if !e.limiter.AllowMessage(s.clientAddress) {
		e.metrics.IncRateLimited()
		s.Enqueue(errorEnvelope("rate_limited"))
		return
	}
	e.metrics.IncMessages()

	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		s.Enqueue(errorEnvelope("invalid_json"))
		return
	}

	typ, _ := obj["type"].(string)

	_, span := tracing.TraceSignalingMessage(context.Background(), typ, s.peerID, s.namespace, s.room)
	defer span.End()

	switch typ {
	case "heartbeat":
		s.Enqueue(heartbeatAckEnvelope(e.clock.Now()))
	case "telemetry":
		e.handleTelemetry(obj)
	default:
		stamped, err := stampRelay(raw, s.peerID, s.namespace, s.room, e.clock.Now())
		if err != nil {
			return
		}
		e.hub.Fanout(s.namespace, s.room, s.peerID, stamped)
	}
}

func (e *Endpoint) handleTelemetry(obj map[string]interface{}) {
	if iceState, ok := obj["iceState"].(string); ok && iceState != "" {
		e.metrics.IncICEState(iceState)
	}
	if reason, ok := obj["failureReason"].(string); ok && reason != "" {
		e.metrics.IncFailureReason(reason)
	}
	if relayUsed, ok := obj["relayUsed"].(bool); ok && relayUsed {
		e.metrics.IncRelayUsage()
	}

	region, hasRegion := obj["region"].(string)
	carrier, hasCarrier := obj["carrier"].(string)
	if (hasRegion && region != "") || (hasCarrier && carrier != "") {
		e.metrics.IncRegionCarrier(region, carrier)
	}
}
