package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"cctvdash/pkg/cache"
	"cctvdash/pkg/config"
	apperrors "cctvdash/pkg/errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// rateLimiterStore keeps one limiter per client. A limiter unused for
// limiterIdleTTL is dropped.
type rateLimiterStore struct {
	limiters  *cache.Cache[string, *rate.Limiter]
	rate      rate.Limit
	burstSize int
}

func newRateLimiterStore(r rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters:  cache.New[string, *rate.Limiter](limiterIdleTTL, cache.WithSlidingExpiry()),
		rate:      r,
		burstSize: burst,
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	return s.limiters.GetOrCreate(key, func() *rate.Limiter {
		return rate.NewLimiter(s.rate, s.burstSize)
	})
}

// clientIP extracts the client address, preferring the first X-Forwarded-For
// hop when present.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewHTTPRateLimitMiddleware returns Gin middleware that applies IP-based rate limiting.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	store := newRateLimiterStore(rate.Limit(cfg.RateLimiting.HTTP.RequestsPerSecond), cfg.RateLimiting.HTTP.Burst)

	return func(c *gin.Context) {
		limiter := store.getLimiter(clientIP(c.Request))
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			abortWithAppError(c, apperrors.NewRateLimitError())
			return
		}
		c.Next()
	}
}

// NewTrackLimiter builds the limiter bounding employee location lookups, or
// nil when rate limiting is disabled.
func NewTrackLimiter(cfg *config.Config) *rate.Limiter {
	if !cfg.RateLimiting.Enabled || cfg.RateLimiting.Track.RequestsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimiting.Track.RequestsPerSecond), cfg.RateLimiting.Track.Burst)
}
