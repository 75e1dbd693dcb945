// Package middleware provides HTTP middleware for the sync server.
package middleware

import (
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/khunphaen/syncserver/internal/domain"
	"github.com/khunphaen/syncserver/internal/metrics"
)

// RateLimiter provides per-source-IP rate limiting. Connections are
// unauthenticated, so the source IP is the only stable key we have.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a rate limiter allowing ratePerSec tokens per
// second per source IP, with the given burst capacity.
func NewRateLimiter(ratePerSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(ratePerSec),
		burst:    burst,
	}
}

// getLimiter returns the rate limiter for a source IP, creating one if needed
func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[ip]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = rl.limiters[ip]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[ip] = limiter
	return limiter
}

// Allow reports whether a request from ip may proceed, consuming a token
// if so.
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.getLimiter(ip).Allow()
}

// Middleware returns an HTTP middleware that rate limits requests by
// source IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := SourceIP(r)
		if !rl.Allow(ip) {
			metrics.RoomCreateRateLimitedTotal.Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"success":false,"error":"` + domain.ErrRateLimited.Error() + `"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Cleanup removes stale rate limiters (call periodically)
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, limiter := range rl.limiters {
		if limiter.Tokens() >= float64(rl.burst) {
			delete(rl.limiters, ip)
		}
	}
}

// SourceIP extracts the caller's address from a request: the first entry
// of X-Forwarded-For if present, else X-Real-IP, else the literal
// "unknown" bucket. Deliberately does NOT fall back to RemoteAddr: a
// client omitting both headers collapses into the single shared "unknown"
// bucket rather than getting its own per-connection allowance, which
// would otherwise let a client bypass the limit just by dropping headers.
func SourceIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	return "unknown"
}
