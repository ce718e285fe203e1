package infra

import (
	"sync"
	"time"
)

// RateLimiter enforces a fixed request quota per rolling window.
// The window resets wholesale once it has fully elapsed since the last
// reset; it is not a sliding log. That permits a burst of up to twice
// the quota across a window boundary, which matches the upstream API's
// own accounting and is kept intentionally.
// Thread-safe for concurrent callers.
type RateLimiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Acquire consumes one slot if the quota allows. When the quota is
// exhausted it returns ok=false and the time remaining until the
// window resets.
func (r *RateLimiter) Acquire() (retryAfter time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.windowStart.IsZero() || now.Sub(r.windowStart) >= r.window {
		r.windowStart = now
		r.count = 0
	}

	if r.count >= r.limit {
		remaining := r.window - now.Sub(r.windowStart)
		if remaining < 0 {
			remaining = 0
		}
		return remaining, false
	}

	r.count++
	return 0, true
}

// Remaining returns how many slots are left in the current window.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.windowStart.IsZero() || r.now().Sub(r.windowStart) >= r.window {
		return r.limit
	}
	return r.limit - r.count
}
