package signaling

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bootstrap-signaling/internal/auth"
	"bootstrap-signaling/internal/metrics"
	"bootstrap-signaling/internal/ratelimit"
	"bootstrap-signaling/internal/rendezvous"
	"bootstrap-signaling/internal/roomhub"
	"bootstrap-signaling/pkg/clock"
)

func newTestEndpoint(t *testing.T, maxConns, maxMsgs int) (*Endpoint, *httptest.Server) {
	t.Helper()

	c := clock.New()
	limiter := ratelimit.New(c, maxConns, maxMsgs)
	verifier := auth.NewVerifier("")
	hub := roomhub.New()
	registry := rendezvous.New(c, nil)
	m := metrics.New()
	logger := zap.NewNop().Sugar()

	e := New(limiter, verifier, hub, registry, m, c, logger, Config{SendBufferSize: 8})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return e, srv
}

func dialSignal(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/signal" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func TestWelcomeEnvelope_Shape(t *testing.T) {
	_, srv := newTestEndpoint(t, 10, 300)
	conn := dialSignal(t, srv, "?namespace=x&room=y&peerId=p1")
	defer conn.Close()

	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read welcome: %v", err)
	}
	if msg["type"] != "welcome" || msg["peerId"] != "p1" || msg["namespace"] != "x" || msg["room"] != "y" {
		t.Fatalf("unexpected welcome shape: %+v", msg)
	}
	if _, err := time.Parse(time.RFC3339, msg["now"].(string)); err != nil {
		t.Fatalf("expected parsable ISO-8601 now, got %v: %v", msg["now"], err)
	}
}

func TestWelcomeEnvelope_DefaultsNamespaceAndRoom(t *testing.T) {
	_, srv := newTestEndpoint(t, 10, 300)
	conn := dialSignal(t, srv, "?peerId=p1")
	defer conn.Close()

	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read welcome: %v", err)
	}
	if msg["namespace"] != "global" || msg["room"] != "public" {
		t.Fatalf("expected default namespace/room global/public, got %+v", msg)
	}
}

func TestFanout_ExcludesSenderAndStampsEnvelope(t *testing.T) {
	_, srv := newTestEndpoint(t, 10, 300)

	a := dialSignal(t, srv, "?namespace=n&room=r&peerId=A")
	defer a.Close()
	var welcomeA map[string]interface{}
	a.ReadJSON(&welcomeA)

	b := dialSignal(t, srv, "?namespace=n&room=r&peerId=B")
	defer b.Close()
	var welcomeB map[string]interface{}
	b.ReadJSON(&welcomeB)

	c := dialSignal(t, srv, "?namespace=n&room=r&peerId=C")
	defer c.Close()
	var welcomeC map[string]interface{}
	c.ReadJSON(&welcomeC)

	if err := a.WriteJSON(map[string]interface{}{"type": "offer", "sdp": "v=0"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var gotB, gotC map[string]interface{}
	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := b.ReadJSON(&gotB); err != nil {
		t.Fatalf("B failed to receive relay: %v", err)
	}
	if err := c.ReadJSON(&gotC); err != nil {
		t.Fatalf("C failed to receive relay: %v", err)
	}

	for _, got := range []map[string]interface{}{gotB, gotC} {
		if got["sourcePeerId"] != "A" || got["namespace"] != "n" || got["room"] != "r" {
			t.Fatalf("unexpected relay envelope: %+v", got)
		}
	}

	a.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var gotA map[string]interface{}
	if err := a.ReadJSON(&gotA); err == nil {
		t.Fatalf("expected sender to receive nothing, got %+v", gotA)
	}
}

func TestHeartbeat_RepliesWithAck(t *testing.T) {
	_, srv := newTestEndpoint(t, 10, 300)
	conn := dialSignal(t, srv, "?namespace=n&room=r&peerId=p1")
	defer conn.Close()

	var welcome map[string]interface{}
	conn.ReadJSON(&welcome)

	conn.WriteJSON(map[string]interface{}{"type": "heartbeat"})

	var ack map[string]interface{}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("failed to read heartbeat-ack: %v", err)
	}
	if ack["type"] != "heartbeat-ack" {
		t.Fatalf("expected heartbeat-ack, got %+v", ack)
	}
}

func TestRateLimitedMessages_EmitsErrorEnvelope(t *testing.T) {
	_, srv := newTestEndpoint(t, 10, 3)
	conn := dialSignal(t, srv, "?namespace=n&room=r&peerId=p1")
	defer conn.Close()

	var welcome map[string]interface{}
	conn.ReadJSON(&welcome)

	for i := 0; i < 5; i++ {
		conn.WriteJSON(map[string]interface{}{"type": "heartbeat"})
	}

	rateLimitedCount := 0
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 5; i++ {
		var resp map[string]interface{}
		if err := conn.ReadJSON(&resp); err != nil {
			break
		}
		if resp["type"] == "error" && resp["code"] == "rate_limited" {
			rateLimitedCount++
		}
	}
	if rateLimitedCount != 2 {
		t.Fatalf("expected exactly 2 rate_limited errors, got %d", rateLimitedCount)
	}
}

func TestInvalidJSON_EmitsErrorEnvelope(t *testing.T) {
	_, srv := newTestEndpoint(t, 10, 300)
	conn := dialSignal(t, srv, "?namespace=n&room=r&peerId=p1")
	defer conn.Close()

	var welcome map[string]interface{}
	conn.ReadJSON(&welcome)

	conn.WriteMessage(websocket.TextMessage, []byte("not json"))

	var resp map[string]interface{}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("failed to read error envelope: %v", err)
	}
	if resp["type"] != "error" || resp["code"] != "invalid_json" {
		t.Fatalf("expected invalid_json error, got %+v", resp)
	}
}

// slowLimiter blocks past the configured handshake timeout so
// TestHandshake_TimesOutWithoutCompleting can force the 408 path
// deterministically.
type slowLimiter struct{ delay time.Duration }

func (s slowLimiter) AllowConnection(addr string) bool {
	time.Sleep(s.delay)
	return true
}
func (s slowLimiter) ReleaseConnection(addr string) {}
func (s slowLimiter) AllowMessage(addr string) bool { return true }

func TestHandshake_TimesOutWithoutCompleting(t *testing.T) {
	c := clock.New()
	verifier := auth.NewVerifier("")
	hub := roomhub.New()
	registry := rendezvous.New(c, nil)
	m := metrics.New()
	logger := zap.NewNop().Sugar()

	e := New(slowLimiter{delay: 200 * time.Millisecond}, verifier, hub, registry, m, c, logger, Config{
		SendBufferSize:   8,
		HandshakeTimeout: 20 * time.Millisecond,
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/signal?peerId=p1"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected dial to fail on handshake timeout")
	}
	if resp == nil || resp.StatusCode != http.StatusRequestTimeout {
		t.Fatalf("expected 408, got %+v", resp)
	}
}

func TestAuthRejection_WrongTokenClosesHandshake(t *testing.T) {
	c := clock.New()
	limiter := ratelimit.New(c, 10, 300)
	verifier := auth.NewVerifier(auth.Digest("s3cret"))
	hub := roomhub.New()
	registry := rendezvous.New(c, nil)
	m := metrics.New()
	logger := zap.NewNop().Sugar()

	e := New(limiter, verifier, hub, registry, m, c, logger, Config{SendBufferSize: 8})
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/signal?token=wrong"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected dial to fail for wrong token")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401 response, got %+v", resp)
	}

	okURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/signal?token=s3cret"
	conn, _, err := websocket.DefaultDialer.Dial(okURL, nil)
	if err != nil {
		t.Fatalf("expected correct token to be admitted: %v", err)
	}
	defer conn.Close()
}
