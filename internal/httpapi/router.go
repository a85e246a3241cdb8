// Package httpapi implements the HTTP Surface: /health, /metrics,
// /bootstrap, /rendezvous/register, /rendezvous/discover. Grounded on
// the teacher's internal/handlers/http/stream_handler.go for the
// gin.H/c.BindJSON/binding-tag handler style and its SetupRoutes
// grouping convention.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bootstrap-signaling/internal/auth"
	"bootstrap-signaling/internal/domain"
	"bootstrap-signaling/pkg/clock"
	apperrors "bootstrap-signaling/pkg/errors"
	"bootstrap-signaling/pkg/tracing"
	"bootstrap-signaling/pkg/validation"
)

// Verifier is the subset of auth.Verifier the HTTP surface depends on.
type Verifier interface {
	Verify(raw string) bool
}

// Hub is the subset of roomhub.Hub the HTTP surface depends on.
type Hub interface {
	Count(namespace, room string) int
}

// Registry is the subset of rendezvous.Registry the HTTP surface depends on.
type Registry interface {
	Register(namespace, room, peerID string, addresses []string, ttlMillis int64, metadata map[string]string) *domain.RendezvousRecord
	Discover(namespace, room string, limit int) []*domain.RendezvousRecord
}

// Deps bundles the collaborators the router wires into handlers.
type Deps struct {
	Verifier             Verifier
	Hub                  Hub
	Registry             Registry
	Clock                clock.Clock
	Logger               *zap.SugaredLogger
	PublicSignalingURL   string
	ICEServerURLs        []string
	DiscoverLimitDefault int
	MetricsHandler       http.Handler
	// ReadyCheck reports whether the optional Redis mirror (if any) is
	// reachable. Nil means there is nothing to check and /ready always
	// reports true.
	ReadyCheck func() bool
	// HTTPRequestsPerSecond/HTTPBurst configure the per-IP token bucket
	// guarding the HTTP surface. HTTPRequestsPerSecond <= 0 disables it.
	HTTPRequestsPerSecond float64
	HTTPBurst             int
}

// iceServers builds the webrtc.ICEServer passthrough list for /bootstrap
// responses. The server never dials these; they are configuration the
// operator wants every client to receive consistently.
func iceServers(urls []string) []webrtc.ICEServer {
	if len(urls) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: urls}}
}

// New builds the gin engine for the HTTP surface.
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(tracingMiddleware())
	r.Use(httpRateLimitMiddleware(d.HTTPRequestsPerSecond, d.HTTPBurst))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "now": d.Clock.Now().UTC().Format("2006-01-02T15:04:05Z07:00")})
	})

	r.GET("/metrics", gin.WrapH(d.MetricsHandler))

	r.GET("/bootstrap", func(c *gin.Context) {
		namespace := c.Query("namespace")
		room := c.Query("room")
		key := domain.NewRoomKey(namespace, room)
		c.JSON(http.StatusOK, gin.H{
			"namespace":    key.Namespace,
			"room":         key.Room,
			"peers":        d.Hub.Count(key.Namespace, key.Room),
			"signalingUrl": d.PublicSignalingURL,
			"iceServers":   iceServers(d.ICEServerURLs),
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		ready := d.ReadyCheck == nil || d.ReadyCheck()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ready": ready})
	})

	r.POST("/rendezvous/register", func(c *gin.Context) {
		token := auth.ExtractToken(c.Request)
		if !d.Verifier.Verify(token) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var body struct {
			Namespace string            `json:"namespace"`
			Room      string            `json:"room"`
			PeerID    string            `json:"peerId" binding:"required"`
			Addresses []string          `json:"addresses"`
			TTLMs     int64             `json:"ttlMs"`
			Metadata  map[string]string `json:"metadata"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			appErr := apperrors.NewMalformedInputError(err.Error())
			c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message})
			return
		}
		if err := validation.ValidatePeerID(body.PeerID); err != nil {
			appErr := apperrors.NewMalformedInputError(err.Error())
			c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message})
			return
		}

		rec := d.Registry.Register(body.Namespace, body.Room, body.PeerID, body.Addresses, body.TTLMs, body.Metadata)
		c.JSON(http.StatusOK, rec)
	})

	r.GET("/rendezvous/discover", func(c *gin.Context) {
		namespace := c.Query("namespace")
		room := c.Query("room")
		limit := d.DiscoverLimitDefault
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		key := domain.NewRoomKey(namespace, room)
		peers := d.Registry.Discover(key.Namespace, key.Room, limit)
		c.JSON(http.StatusOK, gin.H{
			"namespace": key.Namespace,
			"room":      key.Room,
			"peers":     peers,
		})
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r
}

// corsMiddleware applies the headers every response requires per spec
// §4.6 and short-circuits preflight OPTIONS requests with 204.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type,Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// tracingMiddleware opens one span per HTTP Surface request. A no-op
// tracer provider (tracing disabled) makes this essentially free.
func tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// NewMetricsHandler wraps promhttp.HandlerFor for use as a gin.WrapH target.
func NewMetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
