package httpapi

import (
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// httpRateLimiterStore holds a per-client-IP token bucket for the HTTP
// Surface, a distinct dimension from the signaling endpoint's per-address
// connection/message limiter: bursty GET /bootstrap or /rendezvous/
// discover traffic shouldn't need exact fixed-window accounting, so a
// smoothed token bucket fits here instead. Grounded on
// rate_limit_middleware.go's per-IP limiter-store pattern.
type httpRateLimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newHTTPRateLimiterStore(rps float64, burst int) *httpRateLimiterStore {
	return &httpRateLimiterStore{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (s *httpRateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(s.rps, s.burst)
		s.limiters[key] = l
	}
	return l
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := net.ParseIP(xff); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// httpRateLimitMiddleware applies a per-IP token bucket to every HTTP
// Surface request. rps <= 0 disables it entirely.
func httpRateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	store := newHTTPRateLimiterStore(rps, burst)

	return func(c *gin.Context) {
		if !store.getLimiter(clientIP(c.Request)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
