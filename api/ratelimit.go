package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"leadgate/utils"
)

// throttleEntry holds a rate limiter and last-seen timestamp for cleanup.
type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle manages per-IP request throttling for the public form
// endpoints. This is distinct from the login lockout limiter: it bounds
// request volume, not failed credential attempts.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*throttleEntry
	rate     rate.Limit
	burst    int
	maxIdle  time.Duration
}

// NewThrottle creates a throttle allowing r events per second with the
// given burst size. For "10 per minute" pass rate.Every(6*time.Second)
// with burst 10.
func NewThrottle(r rate.Limit, burst int) *Throttle {
	t := &Throttle{
		limiters: make(map[string]*throttleEntry),
		rate:     r,
		burst:    burst,
		maxIdle:  10 * time.Minute,
	}
	go t.cleanup()
	return t
}

// Allow reports whether the given IP may proceed, consuming one token.
func (t *Throttle) Allow(ip string) bool {
	t.mu.Lock()
	entry, exists := t.limiters[ip]
	if !exists {
		entry = &throttleEntry{limiter: rate.NewLimiter(t.rate, t.burst)}
		t.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	t.mu.Unlock()

	return entry.limiter.Allow()
}

// cleanup evicts entries not seen within maxIdle.
func (t *Throttle) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		t.mu.Lock()
		for ip, entry := range t.limiters {
			if time.Since(entry.lastSeen) > t.maxIdle {
				delete(t.limiters, ip)
			}
		}
		t.mu.Unlock()
	}
}

// Middleware wraps routes with per-IP throttling, answering 429 with a
// Retry-After hint when the limit is exceeded.
func (t *Throttle) Middleware() mux.MiddlewareFunc {
	retryAfter := strconv.Itoa(int(time.Duration(float64(time.Second) / float64(t.rate)).Round(time.Second) / time.Second))
	if retryAfter == "0" {
		retryAfter = "1"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !t.Allow(utils.ClientIP(r)) {
				w.Header().Set("Retry-After", retryAfter)
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
