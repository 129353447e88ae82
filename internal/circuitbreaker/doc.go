// Package circuitbreaker implements the circuit breaker pattern for upstream
// forwarding.
//
// A breaker prevents cascading failures by temporarily short-circuiting
// requests to an upstream that keeps failing. It has three states:
//
//   - CLOSED: Normal operation, requests pass through
//   - OPEN: Upstream failing, requests blocked
//   - HALF-OPEN: Testing whether the upstream recovered
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(5, 30*time.Second)
//	cb := registry.Breaker("dummy")
//	if cb.Allow() {
//	    // Forward the request...
//	    if err != nil {
//	        cb.RecordFailure()
//	    } else {
//	        cb.RecordSuccess()
//	    }
//	}
package circuitbreaker
