// Package forwarder issues outbound HTTP requests to upstream backends on
// behalf of workers. Responses are buffered fully in memory before being
// returned, which keeps the reply protocol simple but bounds the payload
// sizes this proxy should be used for. A per-upstream circuit breaker
// short-circuits upstreams that keep failing.
package forwarder
