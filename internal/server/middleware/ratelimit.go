package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// RateLimiter allows a fixed number of requests per client per window.
// Idle visitors expire out of a go-cache instead of a cleanup goroutine.
type RateLimiter struct {
	mu       sync.Mutex
	visitors *gocache.Cache
	limit    int
	window   time.Duration
	logger   *zerolog.Logger
	now      func() time.Time
}

// visitor tracks rate limit state for a single client.
type visitor struct {
	tokens    int
	lastReset time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per minute per client.
func NewRateLimiter(limit int, logger *zerolog.Logger) *RateLimiter {
	return NewRateLimiterWindow(limit, time.Minute, logger)
}

// NewRateLimiterWindow creates a limiter with a custom window.
func NewRateLimiterWindow(limit int, window time.Duration, logger *zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		visitors: gocache.New(10*window, 5*window),
		limit:    limit,
		window:   window,
		logger:   logger,
		now:      time.Now,
	}
}

// Allow reports whether a request from client fits in the current window.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors.Get(client)
	vis, _ := v.(*visitor)
	if !ok || vis == nil {
		vis = &visitor{tokens: rl.limit, lastReset: now}
		rl.visitors.SetDefault(client, vis)
	}

	if now.Sub(vis.lastReset) >= rl.window {
		vis.tokens = rl.limit
		vis.lastReset = now
		rl.visitors.SetDefault(client, vis)
	}

	if vis.tokens > 0 {
		vis.tokens--
		return true
	}
	return false
}

// clientIP prefers the first X-Forwarded-For hop, then the peer address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimit middleware limits requests per client address.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.Allow(ip) {
				rl.logger.Warn().
					Str("ip", ip).
					Str("path", r.URL.Path).
					Msg("Rate limit exceeded")

				w.Header().Set("Retry-After", "60")
				writeJSONError(w, http.StatusTooManyRequests,
					`{"data":null,"error":{"code":"RATE_LIMITED","message":"Rate limit exceeded","details":"Too many requests. Please try again later."}}`)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
