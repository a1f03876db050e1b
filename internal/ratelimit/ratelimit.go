package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultLimit and DefaultWindow bound requests per client key.
	DefaultLimit  = 20
	DefaultWindow = 60 * time.Second

	// sweepThreshold triggers an opportunistic sweep of expired entries
	// once the key space grows past it, bounding memory without a
	// background timer.
	sweepThreshold = 1000

	// fallbackKey buckets every request with no identifying header
	// together. Conservative and intentional: unidentified traffic
	// shares one allowance.
	fallbackKey = "global"
)

type entry struct {
	count   int
	resetAt time.Time
}

// Result is the outcome of one Check call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter is a fixed-window request counter keyed by client identity.
// Counters reset entirely at the window boundary; nothing persists past
// its window.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*entry
}

// New returns a limiter; non-positive arguments fall back to the
// defaults.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		limit:   limit,
		window:  window,
		entries: map[string]*entry{},
	}
}

// Check admits or denies one request for key at time now. The whole
// read-modify-write is a single critical section so concurrent requests
// can never both slip past the limit on a lost update.
func (l *Limiter) Check(key string, now time.Time) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		e = &entry{count: 1, resetAt: now.Add(l.window)}
		l.entries[key] = e
		if len(l.entries) > sweepThreshold {
			l.sweepLocked(now)
		}
		return Result{Allowed: true, Remaining: l.limit - 1, ResetAt: e.resetAt}
	}
	if e.count >= l.limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: e.resetAt}
	}
	e.count++
	return Result{Allowed: true, Remaining: l.limit - e.count, ResetAt: e.resetAt}
}

// sweepLocked drops every expired entry. Caller holds l.mu, so a sweep
// can never race an in-flight Check for the same key.
func (l *Limiter) sweepLocked(now time.Time) {
	for key, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, key)
		}
	}
}

// ClientKey derives the rate-limit identity for a request: first
// comma-separated value of X-Forwarded-For, else X-Real-IP, else the
// shared fallback bucket.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return fallbackKey
}
