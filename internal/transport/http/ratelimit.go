package http

import (
	"sync"
	"time"
)

// rateLimiter allows up to limit events per window.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	counter int
	resetAt time.Time
	now     func() time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 {
		return &rateLimiter{limit: 0}
	}
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !now.Before(r.resetAt) {
		r.counter = 0
		r.resetAt = now.Add(r.window)
	}
	r.counter++
	return r.counter <= r.limit
}

func (r *rateLimiter) expired(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !now.Before(r.resetAt)
}

// keyedRateLimiter keeps one limiter per key, e.g. per client IP.
type keyedRateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	limiters  map[string]*rateLimiter
	lastSweep time.Time
	now       func() time.Time
}

func newKeyedRateLimiter(limit int, window time.Duration) *keyedRateLimiter {
	return &keyedRateLimiter{
		limit:    limit,
		window:   window,
		limiters: make(map[string]*rateLimiter),
		now:      time.Now,
	}
}

func (k *keyedRateLimiter) allow(key string) bool {
	if k.limit <= 0 {
		return true
	}
	k.mu.Lock()
	now := k.now()
	if now.Sub(k.lastSweep) > k.window {
		for key, l := range k.limiters {
			if l.expired(now) {
				delete(k.limiters, key)
			}
		}
		k.lastSweep = now
	}
	l, ok := k.limiters[key]
	if !ok {
		l = newRateLimiter(k.limit, k.window)
		l.now = k.now
		k.limiters[key] = l
	}
	k.mu.Unlock()

	return l.allow()
}
