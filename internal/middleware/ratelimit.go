package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/planwise/internal/auth"
)

// Limit is a fixed-window request budget.
type Limit struct {
	Requests int
	Window   time.Duration
}

var (
	// AuthLimit guards register and login per client address.
	AuthLimit = Limit{Requests: 10, Window: time.Minute}
	// PlanLimit guards model calls per signed-in user.
	PlanLimit = Limit{Requests: 20, Window: time.Hour}
)

// RealIP returns the client address, trusting CF-Connecting-IP and then the
// first X-Forwarded-For hop before RemoteAddr.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IdentityKey keys by the signed-in user's calendar key, falling back to
// the client address for anonymous requests.
func IdentityKey(r *http.Request) string {
	if email := auth.Email(r.Context()); email != "" {
		return "user:" + auth.UserKey(email)
	}
	return "ip:" + RealIP(r)
}

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter counts requests per key in fixed windows, in memory.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow records a request for key. When the budget is spent it returns false
// and how long until the window resets.
func (rl *RateLimiter) Allow(key string, limit Limit) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		rl.windows[key] = &window{count: 1, resetAt: now.Add(limit.Window)}
		return true, 0
	}
	w.count++
	if w.count > limit.Requests {
		return false, w.resetAt.Sub(now)
	}
	return true, 0
}

// Cleanup drops windows that have already reset and returns how many.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	n := 0
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
			n++
		}
	}
	return n
}

// RateLimit rejects requests over limit with 429 and a Retry-After header.
// Keys are namespaced by scope so separate routes keep separate budgets.
func RateLimit(limiter *RateLimiter, scope string, keyFunc func(*http.Request) string, limit Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := limiter.Allow(scope+"|"+keyFunc(r), limit)
			if !ok {
				secs := int(retry.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "Too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
