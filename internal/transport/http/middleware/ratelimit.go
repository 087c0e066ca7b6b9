package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yong-jelly/usemap-sub002/internal/httputil"
	"github.com/yong-jelly/usemap-sub002/internal/model"
)

// limiterIdleTTL is how long an unused per-viewer limiter is kept.
const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per viewer.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	rps     rate.Limit
	burst   int
	now     func() time.Time

	lastSweep time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second per
// viewer with the given burst. Non-positive values fall back to 2 and 10.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 10
	}
	return &RateLimiter{
		entries: make(map[string]*limiterEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether key may proceed now. Idle entries are swept at
// most once a minute.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > time.Minute {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Middleware limits authenticated requests by viewer id and anonymous ones
// by remote address. It must run after AuthMiddleware to see the viewer.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + r.RemoteAddr
		if viewerID, ok := GetUserIDFromContext(r.Context()); ok {
			key = "user:" + viewerID
		}

		if !l.Allow(key) {
			w.Header().Set("Retry-After", "1")
			httputil.WriteError(w, http.StatusTooManyRequests, model.CodeRateLimited, "Too many requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}
