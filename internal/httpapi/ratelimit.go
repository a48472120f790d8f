package httpapi

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// Default cleanup intervals for the transport-level token-bucket
// limiter. This is IP-scoped and sits in front of everything,
// independent of the per-session abuse checks in the safety package.
const (
	cleanupInterval = 1 * time.Minute
	visitorTimeout  = 3 * time.Minute
)

// visitor holds one IP's token-bucket state.
type visitor struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// RateLimiter enforces a per-IP token bucket in front of the HTTP
// surface. It is a blunt, transport-level throttle, not a substitute
// for the session-scoped abuse check applied during admission.
type RateLimiter struct {
	mu       sync.RWMutex
	visitors map[string]*visitor
	rate     float64
	capacity float64
}

// NewRateLimiter builds a limiter refilling at rate tokens/sec up to
// capacity burst tokens, and starts its background cleanup.
func NewRateLimiter(rate, capacity float64) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		capacity: capacity,
	}
	go rl.cleanupVisitors()
	return rl
}

func (rl *RateLimiter) getVisitor(ip string) *visitor {
	rl.mu.RLock()
	v, ok := rl.visitors[ip]
	rl.mu.RUnlock()
	if ok {
		return v
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if v, ok = rl.visitors[ip]; !ok {
		v = &visitor{tokens: rl.capacity, lastRefill: time.Now()}
		rl.visitors[ip] = v
	}
	return v
}

// Allow reports whether ip has a token available, consuming one if so.
func (rl *RateLimiter) Allow(ip string) bool {
	v := rl.getVisitor(ip)

	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(v.lastRefill).Seconds()
	if tokensToAdd := elapsed * rl.rate; tokensToAdd > 0 {
		v.tokens += tokensToAdd
		if v.tokens > rl.capacity {
			v.tokens = rl.capacity
		}
		v.lastRefill = now
	}

	if v.tokens >= 1.0 {
		v.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) cleanupVisitors() {
	for {
		time.Sleep(cleanupInterval)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			v.mu.Lock()
			stale := time.Since(v.lastRefill) > visitorTimeout
			v.mu.Unlock()
			if stale {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware wraps next with the rate check, rejecting with 429 when
// the caller's bucket is empty.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			ip = fwd
		} else if idx := strings.LastIndex(ip, ":"); idx != -1 {
			ip = ip[:idx]
		}

		if !rl.Allow(ip) {
			writeError(w, apiErrorf(http.StatusTooManyRequests, "too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
