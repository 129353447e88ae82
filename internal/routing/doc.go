// Package routing provides the immutable routing table shared by all workers.
// A table holds the named upstreams and the ordered path-prefix rules; rules
// are evaluated in declaration order and the first matching prefix wins.
// Tables are validated on construction and never mutated afterwards, so they
// can be read concurrently without locking.
package routing
