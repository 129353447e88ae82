package pool

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/pkarvelis/routeproxy/internal/forwarder"
	"github.com/pkarvelis/routeproxy/internal/message"
	"github.com/pkarvelis/routeproxy/internal/metrics"
	"github.com/pkarvelis/routeproxy/internal/routing"
	"github.com/pkarvelis/routeproxy/internal/worker"
)

// ErrWorkerUnavailable is returned when no ready worker exists or the
// selected worker died before the reply arrived.
var ErrWorkerUnavailable = errors.New("no ready worker available")

// Pool owns a fixed set of workers, all bound to the same immutable routing
// table. The set is created at startup and only changes when the watcher
// respawns a dead worker.
type Pool struct {
	logger   *slog.Logger
	table    *routing.Table
	fwd      *forwarder.Forwarder
	selector Selector

	mutex   sync.Mutex
	handles []*Handle
	nextID  int

	collector *metrics.Collector
}

// New creates the pool and spawns count workers. A count of zero or less
// defaults to the number of CPUs. Workers stop when ctx is cancelled.
func New(
	ctx context.Context,
	logger *slog.Logger,
	table *routing.Table,
	fwd *forwarder.Forwarder,
	selector Selector,
	count int,
) *Pool {
	if count <= 0 {
		count = runtime.NumCPU()
	}
	if selector == nil {
		selector = NewRandomSelector()
	}

	p := &Pool{
		logger:   logger,
		table:    table,
		fwd:      fwd,
		selector: selector,
	}

	p.handles = make([]*Handle, count)
	for i := 0; i < count; i++ {
		p.handles[i] = p.spawn(ctx)
	}

	logger.Info("Worker pool started", slog.Int("workers", count))
	return p
}

// spawn creates a handle, starts its worker and reply demux, and marks the
// handle ready. Callers hold no lock; nextID is claimed under the mutex.
func (p *Pool) spawn(ctx context.Context) *Handle {
	p.mutex.Lock()
	id := p.nextID
	p.nextID++
	p.mutex.Unlock()

	h := newHandle(id)
	w := worker.New(id, p.table, p.fwd, h.requests, h.replies, h.quit, p.logger)

	go w.Run(ctx)
	go p.demux(h)

	h.setState(StateReady)
	p.emitState(h)
	return h
}

// SetCollector enables worker state change reporting to the metrics
// collector. Safe to leave unset; events are then skipped.
func (p *Pool) SetCollector(c *metrics.Collector) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.collector = c

	for _, h := range p.handles {
		p.emitStateLocked(h)
	}
}

func (p *Pool) emitState(h *Handle) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.emitStateLocked(h)
}

func (p *Pool) emitStateLocked(h *Handle) {
	if p.collector == nil {
		return
	}

	event := metrics.Event{
		Type:      metrics.EventWorkerStateChanged,
		Timestamp: time.Now(),
		Worker:    h.ID(),
		State:     h.State().String(),
	}

	select {
	case p.collector.EventChannel() <- event:
	default:
	}
}

// demux pairs every reply from one worker with its pending send. It exits
// when the worker closes its reply channel, which marks the handle dead and
// fails whatever is still pending.
func (p *Pool) demux(h *Handle) {
	for reply := range h.replies {
		if !h.complete(reply) {
			p.logger.Debug("Reply for abandoned request",
				slog.Int("worker", h.ID()),
				slog.String("correlation_id", reply.CorrelationID))
		}
	}

	if h.markDead() {
		p.logger.Warn("Worker died", slog.Int("worker", h.ID()))
		p.emitState(h)
	}
}

// Select picks a ready worker using the pool's selection policy.
func (p *Pool) Select() (*Handle, error) {
	ready := p.readyHandles()
	if len(ready) == 0 {
		return nil, ErrWorkerUnavailable
	}

	h := p.selector.Select(ready)
	if h == nil {
		return nil, ErrWorkerUnavailable
	}

	return h, nil
}

// Send delivers the descriptor to the worker and waits for the reply with
// the same correlation ID. Cancellation of ctx abandons the wait and frees
// the pending slot; the worker is not disturbed. Shutdown or death of the
// worker while the send is pending resolves it with ErrWorkerUnavailable.
func (p *Pool) Send(ctx context.Context, h *Handle, desc message.RequestDescriptor) (message.ReplyDescriptor, error) {
	waiter, err := h.register(desc.CorrelationID)
	if err != nil {
		return message.ReplyDescriptor{}, err
	}
	defer h.deregister(desc.CorrelationID)

	select {
	case h.requests <- desc:
	case <-h.quit:
		return message.ReplyDescriptor{}, ErrWorkerUnavailable
	case <-h.done:
		return message.ReplyDescriptor{}, ErrWorkerUnavailable
	case <-ctx.Done():
		return message.ReplyDescriptor{}, ctx.Err()
	}

	select {
	case reply, ok := <-waiter:
		if !ok {
			return message.ReplyDescriptor{}, ErrWorkerUnavailable
		}
		return reply, nil
	case <-ctx.Done():
		return message.ReplyDescriptor{}, ctx.Err()
	}
}

// Handles returns a snapshot of the current handle set.
func (p *Pool) Handles() []*Handle {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	out := make([]*Handle, len(p.handles))
	copy(out, p.handles)
	return out
}

// States reports the liveness state of every handle, keyed by worker ID.
func (p *Pool) States() map[int]State {
	states := make(map[int]State)
	for _, h := range p.Handles() {
		states[h.ID()] = h.State()
	}
	return states
}

// Shutdown takes every handle out of the ready set and signals its worker
// to exit. Workers finish their in-flight requests; their handles end up
// dead once the reply channels close.
func (p *Pool) Shutdown() {
	for _, h := range p.Handles() {
		h.beginShutdown()
		p.emitState(h)
	}
	p.logger.Info("Worker pool shut down")
}

func (p *Pool) readyHandles() []*Handle {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	ready := make([]*Handle, 0, len(p.handles))
	for _, h := range p.handles {
		if h.State() == StateReady {
			ready = append(ready, h)
		}
	}
	return ready
}
