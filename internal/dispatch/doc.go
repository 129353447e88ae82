// Package dispatch implements the inbound HTTP handler of the proxy. For
// every request it builds a request descriptor with a fresh correlation ID,
// selects a ready worker, sends the descriptor and awaits the paired reply,
// then writes the mapped HTTP response. Each request is served on its own
// connection goroutine, so a slow backend never blocks the accept loop.
package dispatch
