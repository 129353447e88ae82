// Package metrics provides real-time metrics collection for the proxy.
//
// It uses a channel-based event pipeline to asynchronously collect metrics
// about:
//   - Total dispatched requests
//   - Worker selection frequencies and liveness states
//   - Per-upstream response times with percentile calculations (P50, P95, P99)
//   - HTTP status code distribution
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the dispatch path. Events are sent via buffered channels with
// non-blocking semantics to prevent performance degradation under load.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.EventChannel() <- metrics.Event{
//		Type:       metrics.EventReplyCompleted,
//		Worker:     2,
//		Upstream:   "dummy",
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//	}
//
//	snapshot := collector.Snapshot()
//
// Metrics storage is guarded by sync.RWMutex and the collector drains its
// event channel on shutdown so late events are not lost.
package metrics
