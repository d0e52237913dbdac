package http

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client key. Each key starts with
// burst tokens and regains one every interval.
type RateLimiter struct {
	burst    int
	interval time.Duration
	limiters *xsync.MapOf[string, *rate.Limiter]
	now      func() time.Time
}

// NewRateLimiter builds a limiter with the given burst and refill interval.
func NewRateLimiter(burst int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		burst:    burst,
		interval: interval,
		limiters: xsync.NewMapOf[string, *rate.Limiter](),
		now:      time.Now,
	}
}

// Allow takes one token from key's bucket.
func (r *RateLimiter) Allow(key string) bool {
	lim, _ := r.limiters.LoadOrCompute(key, func() *rate.Limiter {
		return rate.NewLimiter(rate.Every(r.interval), r.burst)
	})
	return lim.AllowN(r.now(), 1)
}

// Sweep drops buckets that have refilled completely, returning how many
// were removed.
func (r *RateLimiter) Sweep() int {
	now := r.now()
	full := float64(r.burst)

	removed := 0
	r.limiters.Range(func(key string, _ *rate.Limiter) bool {
		r.limiters.Compute(key, func(old *rate.Limiter, loaded bool) (*rate.Limiter, bool) {
			if !loaded {
				return old, true
			}
			idle := old.TokensAt(now) >= full
			if idle {
				removed++
			}
			return old, idle
		})
		return true
	})
	return removed
}

// Len returns the number of tracked keys.
func (r *RateLimiter) Len() int {
	return r.limiters.Size()
}

// Run sweeps idle buckets every period until ctx is done.
func (r *RateLimiter) Run(ctx context.Context, period time.Duration, logger *zerolog.Logger) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger.Debug().Int("removed", n).Int("remaining", r.Len()).Msg("rate limit buckets swept")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Middleware rejects requests over the limit with 429, keyed by client IP.
func (r *RateLimiter) Middleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !r.Allow(ip) {
			logger.Debug().Str("client_ip", ip).Msg("rate limited")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})
			return
		}
		c.Next()
	}
}

// Wrap applies the same limit to a plain net/http handler.
func (r *RateLimiter) Wrap(next http.Handler, logger *zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ip := remoteIP(req)
		if !r.Allow(ip) {
			logger.Debug().Str("client_ip", ip).Msg("rate limited")
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})
			return
		}
		next.ServeHTTP(w, req)
	})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
