package circuitbreaker

import (
	"sync"
	"time"
)

// Registry holds one breaker per upstream ID, creating them lazily with a
// shared threshold and reset timeout.
type Registry struct {
	mutex     sync.RWMutex
	breakers  map[string]*Breaker
	threshold int
	timeout   time.Duration
}

func NewRegistry(threshold int, timeout time.Duration) *Registry {
	return &Registry{
		breakers:  make(map[string]*Breaker),
		threshold: threshold,
		timeout:   timeout,
	}
}

// Breaker returns the breaker for the given upstream ID, creating it on
// first use.
func (r *Registry) Breaker(upstreamID string) *Breaker {
	r.mutex.RLock()
	cb, exists := r.breakers[upstreamID]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[upstreamID]; exists {
		return cb
	}

	cb = NewBreaker(r.threshold, r.timeout)
	r.breakers[upstreamID] = cb
	return cb
}

// States reports the current state of every known breaker, keyed by
// upstream ID.
func (r *Registry) States() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	states := make(map[string]State, len(r.breakers))
	for id, cb := range r.breakers {
		states[id] = cb.State()
	}
	return states
}

// Reset drops all breakers, returning every upstream to a closed state.
func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.breakers = make(map[string]*Breaker)
}
