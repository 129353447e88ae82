package forwarder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkarvelis/routeproxy/internal/circuitbreaker"
	"github.com/pkarvelis/routeproxy/internal/routing"
)

// Error reports a failed forwarding attempt. It maps to an
// upstream-unreachable reply at the worker boundary.
type Error struct {
	UpstreamID string
	Reason     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("forward to upstream %q failed: %s", e.UpstreamID, e.Reason)
}

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 10 << 20 // 10 MiB
)

// Forwarder performs outbound HTTP requests against upstreams.
type Forwarder struct {
	client       *http.Client
	breakers     *circuitbreaker.Registry
	logger       *slog.Logger
	maxBodyBytes int64
}

// New creates a Forwarder. A nil breakers registry disables circuit
// breaking; timeout and maxBodyBytes fall back to defaults when zero.
func New(logger *slog.Logger, breakers *circuitbreaker.Registry, timeout time.Duration, maxBodyBytes int64) *Forwarder {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	return &Forwarder{
		client:       &http.Client{Timeout: timeout},
		breakers:     breakers,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// Forward issues the request against the upstream with the inbound method,
// path and headers, and returns the fully buffered response body. Connection
// failures, timeouts, unreadable responses and 5xx upstream statuses are
// returned as *Error.
func (f *Forwarder) Forward(ctx context.Context, upstream routing.Upstream, method, path string, headers map[string]string, body []byte) ([]byte, error) {
	cb := f.breaker(upstream.ID)
	if cb != nil && !cb.Allow() {
		return nil, &Error{UpstreamID: upstream.ID, Reason: "circuit breaker open"}
	}

	target := strings.TrimSuffix(upstream.Address, "/") + path

	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, &Error{UpstreamID: upstream.ID, Reason: err.Error()}
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := f.client.Do(req)
	if err != nil {
		if cb != nil {
			cb.RecordFailure()
		}
		f.logger.Warn("Upstream request failed",
			slog.String("upstream", upstream.ID),
			slog.String("target", target),
			slog.Any("err", err))
		return nil, &Error{UpstreamID: upstream.ID, Reason: err.Error()}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, f.maxBodyBytes))
	if err != nil {
		if cb != nil {
			cb.RecordFailure()
		}
		return nil, &Error{UpstreamID: upstream.ID, Reason: "reading response body: " + err.Error()}
	}

	if res.StatusCode >= http.StatusInternalServerError {
		if cb != nil {
			cb.RecordFailure()
		}
		return nil, &Error{UpstreamID: upstream.ID, Reason: fmt.Sprintf("upstream returned %d", res.StatusCode)}
	}

	if cb != nil {
		cb.RecordSuccess()
	}

	return data, nil
}

func (f *Forwarder) breaker(upstreamID string) *circuitbreaker.Breaker {
	if f.breakers == nil {
		return nil
	}
	return f.breakers.Breaker(upstreamID)
}
