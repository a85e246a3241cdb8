package signaling

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the per-session lifecycle position from spec §4.9:
// HANDSHAKE -> ADMITTED -> ACTIVE -> CLOSING -> CLOSED.
type State int32

const (
	StateHandshake State = iota
	StateAdmitted
	StateActive
	StateClosing
	StateClosed
)

// Session is a single admitted signaling connection. It implements
// roomhub.Member so the hub can fan out to it without depending on the
// transport. Exactly one goroutine (runWriter) ever calls conn.Write*,
// per gorilla/websocket's single-writer requirement — grounded on the
// teacher's websocket_server.go, which instead wrote directly from
// multiple call sites; here all writes are funneled through one
// channel to make that requirement structurally impossible to violate.
type Session struct {
	conn          *websocket.Conn
	peerID        string
	namespace     string
	room          string
	clientAddress string
	connectedAt   time.Time
	writeTimeout  time.Duration

	outbound chan []byte

	mu     sync.Mutex
	state  State
	closed chan struct{}
	once   sync.Once
}

func newSession(conn *websocket.Conn, peerID, namespace, room, clientAddress string, connectedAt time.Time, bufferSize int, writeTimeout time.Duration) *Session {
	return &Session{
		conn:          conn,
		peerID:        peerID,
		namespace:     namespace,
		room:          room,
		clientAddress: clientAddress,
		connectedAt:   connectedAt,
		writeTimeout:  writeTimeout,
		outbound:      make(chan []byte, bufferSize),
		closed:        make(chan struct{}),
		state:         StateHandshake,
	}
}

// PeerID satisfies roomhub.Member.
func (s *Session) PeerID() string { return s.peerID }

// Enqueue is the non-blocking publish side of fan-out. When the
// outbound buffer is saturated, this session is closed rather than
// left to accumulate unbounded backlog or block the caller — the
// chosen backpressure policy for the open question in spec §9.
func (s *Session) Enqueue(frame []byte) bool {
	select {
	case s.outbound <- frame:
		return true
	default:
		s.Close()
		return false
	}
}

// setState transitions the session's lifecycle state.
func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) getState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close signals teardown exactly once; safe to call concurrently from
// the reader, the writer, or fan-out backpressure.
func (s *Session) Close() {
	s.once.Do(func() {
		s.setState(StateClosing)
		close(s.closed)
	})
}

// Done reports the channel that closes when the session is tearing down.
func (s *Session) Done() <-chan struct{} { return s.closed }

// runWriter is the session's single writer goroutine: it drains
// outbound frames and performs the close handshake, and must run for
// the lifetime of the connection.
func (s *Session) runWriter() {
	for {
		select {
		case frame, ok := <-s.outbound:
			if !ok {
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.Close()
				return
			}
		case <-s.closed:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
