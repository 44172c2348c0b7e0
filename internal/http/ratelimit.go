package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"competition-voting/internal/metrics"
	"competition-voting/internal/platform/apperr"
)

// RateLimitVotes throttles vote attempts per authenticated voter. Requests
// without an actor fall back to the client address. It must run after
// AuthMiddleware.
func RateLimitVotes(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := newKeyedLimiter(limit, burst, 10*time.Minute)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(voterKey(r)) {
				metrics.IncVote("rate_limited")
				errorResponse(w, apperr.TooManyRequests("rate_limited", "too many vote attempts", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func voterKey(r *http.Request) string {
	if actor, ok := actorFromCtx(r); ok {
		return "user:" + actor.ID.String()
	}
	// RealIP has already rewritten RemoteAddr from proxy headers.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type keyedLimiter struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	nextSweep time.Time
	now       func() time.Time
}

func newKeyedLimiter(limit rate.Limit, burst int, idleTTL time.Duration) *keyedLimiter {
	return &keyedLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   limit,
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

func (l *keyedLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.After(l.nextSweep) {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > l.idleTTL {
				delete(l.entries, k)
			}
		}
		l.nextSweep = now.Add(l.idleTTL)
	}

	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *keyedLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
