package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRequestReceived    EventType = "request_received"
	EventWorkerSelected     EventType = "worker_selected"
	EventReplyCompleted     EventType = "reply_completed"
	EventWorkerStateChanged EventType = "worker_state_changed"
)

type Event struct {
	Type       EventType
	Timestamp  time.Time
	Worker     int
	Upstream   string
	Duration   time.Duration
	StatusCode int
	State      string
}

type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- Event {
	return c.eventCh
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventRequestReceived:
		c.metrics.IncrementRequests()

	case EventWorkerSelected:
		c.metrics.RecordWorkerSelection(event.Worker)

	case EventReplyCompleted:
		c.metrics.RecordReply(event.Upstream, event.Duration, event.StatusCode)

	case EventWorkerStateChanged:
		c.metrics.UpdateWorkerState(event.Worker, event.State)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
