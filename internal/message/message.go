package message

import (
	"net/http"

	"github.com/google/uuid"
)

// ErrorKind classifies why a worker could not produce an upstream response.
type ErrorKind int

const (
	ErrNone ErrorKind = iota // Successful reply
	ErrRuleNotFound
	ErrUpstreamNotFound
	ErrUpstreamUnreachable
)

// RequestDescriptor is the unit of work handed to a worker. The dispatcher
// owns it until the matching reply arrives or the wait is abandoned.
type RequestDescriptor struct {
	CorrelationID string
	Method        string
	Path          string
	Headers       map[string]string
	Body          []byte
}

// ReplyDescriptor is the worker's answer to exactly one RequestDescriptor.
// Either Body is set (Err == ErrNone) or Err and Detail describe the failure.
// Upstream names the upstream that served or refused the request; empty when
// the request never reached one.
type ReplyDescriptor struct {
	CorrelationID string
	Upstream      string
	Body          []byte
	Err           ErrorKind
	Detail        string
}

// NewCorrelationID returns a unique token for pairing a request with its reply.
func NewCorrelationID() string {
	return uuid.NewString()
}

// OK reports whether the reply carries a successful upstream response.
func (r ReplyDescriptor) OK() bool {
	return r.Err == ErrNone
}

// HTTPStatus maps the error kind to the status code written to the client.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case ErrNone:
		return http.StatusOK
	case ErrRuleNotFound:
		return http.StatusNotFound
	case ErrUpstreamNotFound:
		return http.StatusInternalServerError
	case ErrUpstreamUnreachable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage is the short human-readable body written to the client for
// this error kind. Internal detail never leaks here.
func (k ErrorKind) ClientMessage() string {
	switch k {
	case ErrRuleNotFound:
		return "Rule not found"
	case ErrUpstreamNotFound:
		return "Upstream not found"
	case ErrUpstreamUnreachable:
		return "Upstream unreachable"
	default:
		return "Internal error"
	}
}

func (k ErrorKind) String() string {
	switch k {
	case ErrNone:
		return "none"
	case ErrRuleNotFound:
		return "rule_not_found"
	case ErrUpstreamNotFound:
		return "upstream_not_found"
	case ErrUpstreamUnreachable:
		return "upstream_unreachable"
	default:
		return "unknown"
	}
}
