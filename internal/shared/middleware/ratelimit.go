package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const maxLimiters = 10000

// RateLimiter keeps one token bucket per caller. Callers are keyed by
// authenticated user when Auth ran first, otherwise by remote address.
type RateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	rate       rate.Limit
	burst      int
	now        func() time.Time
}

func NewRateLimiter(perMinute, burst int) *RateLimiter {
	return &RateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		rate:       rate.Limit(float64(perMinute) / 60.0),
		burst:      max(1, burst),
		now:        time.Now,
	}
}

// reserve returns how long the caller must wait; zero means allowed.
func (l *RateLimiter) reserve(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	limiter, exists := l.limiters[key]
	if !exists {
		if len(l.limiters) >= maxLimiters {
			l.evictLocked(now.Add(-time.Minute))
		}
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}
	l.lastAccess[key] = now

	if limiter.AllowN(now, 1) {
		return 0
	}
	r := limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return delay
}

// Evict removes limiters that haven't been used within maxAge.
func (l *RateLimiter) Evict(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked(l.now().Add(-maxAge))
}

func (l *RateLimiter) evictLocked(cutoff time.Time) {
	for key, last := range l.lastAccess {
		if last.Before(cutoff) {
			delete(l.limiters, key)
			delete(l.lastAccess, key)
		}
	}
}

// Run evicts idle limiters every interval until ctx is done.
func (l *RateLimiter) Run(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Evict(maxAge)
		}
	}
}

func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wait := l.reserve(callerKey(r)); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return "user:" + id.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
