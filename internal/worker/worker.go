package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkarvelis/routeproxy/internal/forwarder"
	"github.com/pkarvelis/routeproxy/internal/message"
	"github.com/pkarvelis/routeproxy/internal/routing"
)

// Worker processes request descriptors against one routing table snapshot.
type Worker struct {
	id       int
	table    *routing.Table
	fwd      *forwarder.Forwarder
	requests <-chan message.RequestDescriptor
	replies  chan<- message.ReplyDescriptor
	quit     <-chan struct{}
	logger   *slog.Logger
}

func New(
	id int,
	table *routing.Table,
	fwd *forwarder.Forwarder,
	requests <-chan message.RequestDescriptor,
	replies chan<- message.ReplyDescriptor,
	quit <-chan struct{},
	logger *slog.Logger,
) *Worker {
	return &Worker{
		id:       id,
		table:    table,
		fwd:      fwd,
		requests: requests,
		replies:  replies,
		quit:     quit,
		logger:   logger.With(slog.Int("worker", id)),
	}
}

// ID returns the worker's pool-assigned identifier.
func (w *Worker) ID() int {
	return w.id
}

// Run receives descriptors until ctx is cancelled, the quit channel is
// closed, or the request channel is closed. Each descriptor is handled in
// its own goroutine so the loop never blocks on upstream latency. On exit
// Run waits for in-flight handlers and then closes the reply channel; the
// pool observes that close as worker death and fails any still-pending
// sends.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Debug("Worker started")

	var inflight sync.WaitGroup
	defer func() {
		inflight.Wait()
		close(w.replies)
		w.logger.Debug("Worker stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.quit:
			return
		case desc, ok := <-w.requests:
			if !ok {
				return
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				w.handle(ctx, desc)
			}()
		}
	}
}

func (w *Worker) handle(ctx context.Context, desc message.RequestDescriptor) {
	reply := w.process(ctx, desc)

	select {
	case w.replies <- reply:
	case <-ctx.Done():
	}
}

// process resolves the rule, looks up the upstream and forwards the request.
// All failures become typed replies; nothing escapes as an unstructured fault.
func (w *Worker) process(ctx context.Context, desc message.RequestDescriptor) message.ReplyDescriptor {
	rule, ok := w.table.Match(desc.Path)
	if !ok {
		w.logger.Debug("No rule matched",
			slog.String("path", desc.Path),
			slog.String("correlation_id", desc.CorrelationID))
		return message.ReplyDescriptor{
			CorrelationID: desc.CorrelationID,
			Err:           message.ErrRuleNotFound,
			Detail:        "no rule matched path",
		}
	}

	upstream, ok := w.table.Lookup(rule.UpstreamIDs[0])
	if !ok {
		w.logger.Error("Rule references unknown upstream",
			slog.String("path", desc.Path),
			slog.String("upstream", rule.UpstreamIDs[0]))
		return message.ReplyDescriptor{
			CorrelationID: desc.CorrelationID,
			Err:           message.ErrUpstreamNotFound,
			Detail:        "rule references unknown upstream " + rule.UpstreamIDs[0],
		}
	}

	body, err := w.fwd.Forward(ctx, upstream, desc.Method, desc.Path, desc.Headers, desc.Body)
	if err != nil {
		w.logger.Warn("Forwarding failed",
			slog.String("upstream", upstream.ID),
			slog.String("path", desc.Path),
			slog.Any("err", err))
		return message.ReplyDescriptor{
			CorrelationID: desc.CorrelationID,
			Upstream:      upstream.ID,
			Err:           message.ErrUpstreamUnreachable,
			Detail:        err.Error(),
		}
	}

	return message.ReplyDescriptor{
		CorrelationID: desc.CorrelationID,
		Upstream:      upstream.ID,
		Body:          body,
	}
}
