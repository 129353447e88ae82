// Package pool owns the fixed set of workers created at startup. It exposes
// the two operations the dispatcher needs: selecting a ready worker and
// sending a request descriptor while awaiting the matching-correlation-ID
// reply. Replies are demultiplexed per worker through a pending map keyed by
// correlation ID, so any number of requests can be in flight on one worker
// without ambiguity. A handle whose worker exits is marked dead and all of
// its pending sends fail with ErrWorkerUnavailable; an optional watcher can
// respawn dead workers.
package pool
