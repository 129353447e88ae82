// Package worker implements the isolated execution unit that turns request
// descriptors into reply descriptors. Each worker is bound to one immutable
// routing table snapshot and runs a single receive loop; every received
// descriptor is handled in its own goroutine, so several requests can be in
// flight on the same worker while slow upstreams are awaited. Replies carry
// the correlation ID of their request; pairing is done by the pool.
package worker
