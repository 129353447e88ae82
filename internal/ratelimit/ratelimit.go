// Package ratelimit provides per-client token bucket rate limiting for the
// dispatcher, keyed by client IP.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter manages one token bucket per key, all sharing the same rate and
// burst configuration.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

func New(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

// Allow reports whether a request for the given key fits within its bucket,
// creating the bucket on first use.
func (l *Limiter) Allow(key string) bool {
	l.mu.RLock()
	lim, ok := l.limiters[key]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		// Double-check: another goroutine may have created it
		lim, ok = l.limiters[key]
		if !ok {
			lim = rate.NewLimiter(rate.Limit(l.rps), l.burst)
			l.limiters[key] = lim
		}
		l.mu.Unlock()
	}

	return lim.Allow()
}

// Remove drops the bucket for the given key.
func (l *Limiter) Remove(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, key)
}
