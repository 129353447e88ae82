package pool

import (
	"sync"

	"github.com/pkarvelis/routeproxy/internal/message"
)

// State is the liveness state of a worker handle.
type State int

const (
	StateStarting State = iota
	StateReady
	StateDraining
	StateDead
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Handle is the pool's view of one worker: its channels, its liveness state
// and the pending sends awaiting replies. Handles are owned exclusively by
// the pool; the state and pending map are the only mutable shared data and
// are guarded by the mutex.
type Handle struct {
	id       int
	requests chan message.RequestDescriptor
	replies  chan message.ReplyDescriptor
	quit     chan struct{}

	mutex   sync.Mutex
	state   State
	pending map[string]chan message.ReplyDescriptor
	done    chan struct{}

	quitOnce sync.Once
}

func newHandle(id int) *Handle {
	return &Handle{
		id:       id,
		requests: make(chan message.RequestDescriptor),
		replies:  make(chan message.ReplyDescriptor),
		quit:     make(chan struct{}),
		state:    StateStarting,
		pending:  make(map[string]chan message.ReplyDescriptor),
		done:     make(chan struct{}),
	}
}

// ID returns the worker's identifier.
func (h *Handle) ID() int {
	return h.id
}

// State returns the handle's current liveness state.
func (h *Handle) State() State {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.state
}

// setState transitions the handle and reports whether the state changed.
// Dead handles never leave the dead state.
func (h *Handle) setState(s State) (changed bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.state == s || h.state == StateDead {
		return false
	}

	h.state = s
	return true
}

// register records a pending send and returns the one-shot channel the reply
// will be delivered on. Only ready handles accept new sends; draining and
// dead handles refuse them.
func (h *Handle) register(correlationID string) (<-chan message.ReplyDescriptor, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.state != StateReady {
		return nil, ErrWorkerUnavailable
	}

	// Buffered so the demux loop never blocks on delivery, even if the
	// waiter has already given up.
	ch := make(chan message.ReplyDescriptor, 1)
	h.pending[correlationID] = ch
	return ch, nil
}

// deregister abandons a pending send. Safe to call after the reply was
// delivered or the handle died; it only forgets the slot.
func (h *Handle) deregister(correlationID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.pending, correlationID)
}

// complete delivers a reply to its pending waiter. It reports false when no
// waiter is registered for the correlation ID, which happens when the
// dispatcher abandoned the wait before the reply arrived.
func (h *Handle) complete(reply message.ReplyDescriptor) bool {
	h.mutex.Lock()
	ch, ok := h.pending[reply.CorrelationID]
	if ok {
		delete(h.pending, reply.CorrelationID)
	}
	h.mutex.Unlock()

	if !ok {
		return false
	}

	ch <- reply
	return true
}

// markDead transitions the handle to dead and fails every pending send by
// closing its waiter channel. Reports whether the transition happened.
func (h *Handle) markDead() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.state == StateDead {
		return false
	}

	h.state = StateDead
	close(h.done)

	for id, ch := range h.pending {
		close(ch)
		delete(h.pending, id)
	}

	return true
}

// beginShutdown takes the handle out of the ready set and signals its worker
// to exit after draining in-flight work. The request channel stays open so a
// send racing the shutdown can never hit a closed channel; such a send parks
// until the worker's death resolves it. Already-pending replies still arrive
// while the worker drains.
func (h *Handle) beginShutdown() {
	h.quitOnce.Do(func() {
		h.mutex.Lock()
		if h.state != StateDead {
			h.state = StateDraining
		}
		h.mutex.Unlock()

		close(h.quit)
	})
}
