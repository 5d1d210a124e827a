package middleware

import (
	"net/http"
	"sync"
	"time"
)

const staleAfter = 10 * time.Minute

// RateLimiter throttles callers per client IP with a token bucket.
// Slot polling from booking widgets is the traffic this guards against.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	perSecond float64
	burst     float64
	lastSweep time.Time
}

type visitor struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter allows perSecond sustained requests with the given burst
// per client IP.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors:  make(map[string]*visitor),
		perSecond: perSecond,
		burst:     float64(burst),
		lastSweep: time.Now(),
	}
}

// Allow reports whether a request from ip may proceed, spending one token.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweepLocked(now)

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{tokens: rl.burst}
		rl.visitors[ip] = v
	} else {
		v.tokens += now.Sub(v.seen).Seconds() * rl.perSecond
		if v.tokens > rl.burst {
			v.tokens = rl.burst
		}
	}
	v.seen = now

	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

// sweepLocked drops visitors idle past staleAfter. Runs inline at most
// once per sweep interval, so no background goroutine is needed.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < staleAfter {
		return
	}
	for ip, v := range rl.visitors {
		if now.Sub(v.seen) > staleAfter {
			delete(rl.visitors, ip)
		}
	}
	rl.lastSweep = now
}

// RateLimit rejects requests over the per-IP limit with 429.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(perSecond, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			// chi's RealIP middleware rewrites RemoteAddr from the
			// forwarding headers, but honor X-Real-Ip directly too.
			if xri := r.Header.Get("X-Real-Ip"); xri != "" {
				ip = xri
			}
			if !limiter.Allow(ip) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
