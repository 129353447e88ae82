package metrics_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pkarvelis/routeproxy/internal/metrics"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		log       *slog.Logger
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, log)
	})

	AfterEach(func() {
		cancel()
	})

	Describe("event processing", func() {
		BeforeEach(func() {
			collector.Start(ctx)
		})

		It("should process request-received events", func() {
			collector.EventChannel() <- metrics.Event{
				Type:      metrics.EventRequestReceived,
				Timestamp: time.Now(),
			}

			Eventually(func() int64 {
				return collector.Snapshot().TotalRequests
			}).Should(Equal(int64(1)))
		})

		It("should process worker-selected events", func() {
			collector.EventChannel() <- metrics.Event{
				Type:   metrics.EventWorkerSelected,
				Worker: 3,
			}

			Eventually(func() int64 {
				return collector.Snapshot().Workers[3].Selections
			}).Should(Equal(int64(1)))
		})

		It("should process reply-completed events", func() {
			collector.EventChannel() <- metrics.Event{
				Type:       metrics.EventReplyCompleted,
				Worker:     1,
				Upstream:   "dummy",
				Duration:   100 * time.Millisecond,
				StatusCode: 200,
			}

			Eventually(func() int64 {
				return collector.Snapshot().Upstreams["dummy"].Requests
			}).Should(Equal(int64(1)))
		})

		It("should process worker-state-changed events", func() {
			collector.EventChannel() <- metrics.Event{
				Type:   metrics.EventWorkerStateChanged,
				Worker: 0,
				State:  "dead",
			}

			Eventually(func() string {
				return collector.Snapshot().Workers[0].State
			}).Should(Equal("dead"))
		})
	})

	Describe("Handler", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Start(ctx)

			collector.EventChannel() <- metrics.Event{Type: metrics.EventRequestReceived}
			Eventually(func() int64 {
				return collector.Snapshot().TotalRequests
			}).Should(Equal(int64(1)))

			req := httptest.NewRequest("GET", "/metrics", nil)
			w := httptest.NewRecorder()
			collector.Handler()(w, req)

			Expect(w.Code).To(Equal(200))
			Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))

			var snap metrics.Snapshot
			Expect(json.Unmarshal(w.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.TotalRequests).To(Equal(int64(1)))
		})
	})

	Describe("shutdown", func() {
		It("should drain buffered events before stopping", func() {
			// Buffer events before the collector starts consuming
			for i := 0; i < 10; i++ {
				collector.EventChannel() <- metrics.Event{Type: metrics.EventRequestReceived}
			}

			collector.Start(ctx)
			cancel()

			Eventually(func() int64 {
				return collector.Snapshot().TotalRequests
			}).Should(Equal(int64(10)))
		})
	})
})
