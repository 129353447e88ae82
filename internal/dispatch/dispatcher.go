package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkarvelis/routeproxy/internal/message"
	"github.com/pkarvelis/routeproxy/internal/metrics"
	"github.com/pkarvelis/routeproxy/internal/pool"
	"github.com/pkarvelis/routeproxy/internal/ratelimit"
)

// Header is a static response header configured on the proxy.
type Header struct {
	Key   string
	Value string
}

const (
	defaultReplyTimeout = 10 * time.Second
	defaultMaxBodyBytes = 10 << 20 // 10 MiB
)

// Dispatcher owns the inbound side of the proxy: it converts HTTP requests
// into descriptors and worker replies back into HTTP responses.
type Dispatcher struct {
	logger       *slog.Logger
	pool         *pool.Pool
	collector    *metrics.Collector
	limiter      *ratelimit.Limiter
	headers      []Header
	replyTimeout time.Duration
	maxBodyBytes int64
}

// New creates a Dispatcher. collector and limiter may be nil to disable
// metrics emission and rate limiting respectively.
func New(
	logger *slog.Logger,
	p *pool.Pool,
	collector *metrics.Collector,
	limiter *ratelimit.Limiter,
	headers []Header,
	replyTimeout time.Duration,
) *Dispatcher {
	if replyTimeout <= 0 {
		replyTimeout = defaultReplyTimeout
	}

	return &Dispatcher{
		logger:       logger,
		pool:         p,
		collector:    collector,
		limiter:      limiter,
		headers:      headers,
		replyTimeout: replyTimeout,
		maxBodyBytes: defaultMaxBodyBytes,
	}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Configured headers go on every response, error paths included
	for _, h := range d.headers {
		w.Header().Set(h.Key, h.Value)
	}

	clientIP := extractClientIP(r)

	d.logger.Info("Received request",
		slog.String("from", clientIP),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))

	if d.limiter != nil && !d.limiter.Allow(clientIP) {
		d.logger.Warn("Rate limit exceeded", slog.String("client", clientIP))
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	d.emitEvent(metrics.Event{
		Type:      metrics.EventRequestReceived,
		Timestamp: time.Now(),
	})

	body, err := io.ReadAll(io.LimitReader(r.Body, d.maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	desc := message.RequestDescriptor{
		CorrelationID: message.NewCorrelationID(),
		Method:        r.Method,
		Path:          r.URL.Path,
		Headers:       collapseHeaders(r.Header),
		Body:          body,
	}

	handle, err := d.pool.Select()
	if err != nil {
		d.logger.Error("No worker available", slog.String("client", clientIP))
		d.writeError(w, http.StatusInternalServerError, "Internal error", 0)
		return
	}

	d.emitEvent(metrics.Event{
		Type:      metrics.EventWorkerSelected,
		Timestamp: time.Now(),
		Worker:    handle.ID(),
	})

	ctx, cancel := context.WithTimeout(r.Context(), d.replyTimeout)
	defer cancel()

	start := time.Now()
	reply, err := d.pool.Send(ctx, handle, desc)
	duration := time.Since(start)

	switch {
	case err == nil:
		d.writeReply(w, handle.ID(), reply, duration)

	case errors.Is(err, context.DeadlineExceeded):
		d.logger.Warn("Reply timed out",
			slog.String("correlation_id", desc.CorrelationID),
			slog.Int("worker", handle.ID()))
		d.writeError(w, http.StatusGatewayTimeout, "Gateway timeout", handle.ID())

	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful can be written
		d.logger.Debug("Request abandoned by client",
			slog.String("correlation_id", desc.CorrelationID))

	case errors.Is(err, pool.ErrWorkerUnavailable):
		d.logger.Error("Worker became unavailable",
			slog.String("correlation_id", desc.CorrelationID),
			slog.Int("worker", handle.ID()))
		d.writeError(w, http.StatusInternalServerError, "Internal error", handle.ID())

	default:
		d.logger.Error("Dispatch failed",
			slog.String("correlation_id", desc.CorrelationID),
			slog.Any("err", err))
		d.writeError(w, http.StatusInternalServerError, "Internal error", handle.ID())
	}
}

func (d *Dispatcher) writeReply(w http.ResponseWriter, workerID int, reply message.ReplyDescriptor, duration time.Duration) {
	status := reply.Err.HTTPStatus()

	d.emitEvent(metrics.Event{
		Type:       metrics.EventReplyCompleted,
		Timestamp:  time.Now(),
		Worker:     workerID,
		Upstream:   reply.Upstream,
		Duration:   duration,
		StatusCode: status,
	})

	if reply.OK() {
		w.WriteHeader(http.StatusOK)
		w.Write(reply.Body)
		return
	}

	// Detail stays in the logs; the client gets the short canonical body
	d.logger.Warn("Request failed",
		slog.String("correlation_id", reply.CorrelationID),
		slog.String("error", reply.Err.String()),
		slog.String("detail", reply.Detail))

	http.Error(w, reply.Err.ClientMessage(), status)
}

func (d *Dispatcher) writeError(w http.ResponseWriter, status int, body string, workerID int) {
	d.emitEvent(metrics.Event{
		Type:       metrics.EventReplyCompleted,
		Timestamp:  time.Now(),
		Worker:     workerID,
		StatusCode: status,
	})

	http.Error(w, body, status)
}

func (d *Dispatcher) emitEvent(event metrics.Event) {
	if d.collector == nil {
		return
	}

	select {
	case d.collector.EventChannel() <- event:
	default:
	}
}

func collapseHeaders(header http.Header) map[string]string {
	collapsed := make(map[string]string, len(header))
	for k, vals := range header {
		if len(vals) == 0 {
			continue
		}
		// Last value wins when a header repeats
		collapsed[k] = vals[len(vals)-1]
	}
	return collapsed
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
