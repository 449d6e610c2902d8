// Package errs defines the adapter's error taxonomy: a small set of Kinds
// that every layer — transport, cache, endpoint, httpapi — maps onto HTTP
// status codes and retry/degradation policy, rather than switching on
// concrete error types.
package errs

import (
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies what went wrong, independent of which component raised it.
type Kind string

const (
	// InvalidInput covers validation-plan failures and unknown transports.
	InvalidInput Kind = "invalid_input"
	// Upstream covers provider HTTP/WS failures; the cache remains intact.
	Upstream Kind = "upstream"
	// CacheUnavailable covers remote cache/subscription-set transport
	// failures; callers downgrade to no-cache rather than fail the request.
	CacheUnavailable Kind = "cache_unavailable"
	// ConnectFailed covers WebSocket dial/handshake failures.
	ConnectFailed Kind = "connect_failed"
	// Internal covers programmer errors and anything uncategorized.
	Internal Kind = "internal"
)

// httpStatus maps each Kind to its default HTTP status. Upstream defaults
// to 502; callers that know the failure was a timeout should use
// NewUpstreamTimeout instead.
var httpStatus = map[Kind]int{
	InvalidInput:     http.StatusBadRequest,
	Upstream:         http.StatusBadGateway,
	CacheUnavailable: http.StatusInternalServerError,
	ConnectFailed:    http.StatusBadGateway,
	Internal:         http.StatusInternalServerError,
}

// Error is the adapter's concrete error type. It carries a Kind, the HTTP
// status that Kind maps to, and, when the failure originated in a
// provider response, the status code that provider returned.
type Error struct {
	Kind               Kind
	Status             int
	ProviderStatusCode int
	cause              error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Kind) + ": " + e.cause.Error()
	}
	return string(e.Kind)
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// New wraps cause as the given Kind with a stack trace attached via
// pkg/errors, and the Kind's default HTTP status.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Status: httpStatus[kind], cause: errors.WithStack(cause)}
}

// Newf constructs a new error of kind from a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return New(kind, errors.Errorf(format, args...))
}

// NewUpstreamTimeout builds an Upstream error that maps to 504 instead of
// the default 502.
func NewUpstreamTimeout(cause error) *Error {
	e := New(Upstream, cause)
	e.Status = http.StatusGatewayTimeout
	return e
}

// WithProviderStatus attaches the upstream's own status code, surfaced to
// clients for diagnostics.
func (e *Error) WithProviderStatus(code int) *Error {
	e.ProviderStatusCode = code
	return e
}

// HTTPStatus returns err's mapped status, defaulting to 500 for errors that
// are not *Error.
func HTTPStatus(err error) int {
	var adapterErr *Error
	if errors.As(err, &adapterErr) {
		return adapterErr.Status
	}
	return http.StatusInternalServerError
}

// KindOf returns err's Kind, defaulting to Internal for errors that are not
// *Error.
func KindOf(err error) Kind {
	var adapterErr *Error
	if errors.As(err, &adapterErr) {
		return adapterErr.Kind
	}
	return Internal
}
