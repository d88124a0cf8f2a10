package chat

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles chat messages per session with a token bucket
// that refills limit tokens per window.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	every    rate.Limit
	burst    int
	window   time.Duration
	now      func() time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows limit messages per window for each key.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		every:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow reports whether key may send another message now.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	e, ok := r.limiters[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(r.every, r.burst)}
		r.limiters[key] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}

// Evict drops limiters idle for longer than a window.
func (r *RateLimiter) Evict() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.window)
	n := 0
	for key, e := range r.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(r.limiters, key)
			n++
		}
	}
	return n
}

// StartEviction runs Evict once per window until ctx is cancelled.
func (r *RateLimiter) StartEviction(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.window)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Evict()
			case <-ctx.Done():
				return
			}
		}
	}()
}
