// Package apierr classifies remote-pricing failures into the small set
// of outcomes the rest of the app makes policy decisions on: whether to
// retry, whether to surface a message, and what that message says.
package apierr

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the failure class observed by the client, not the raw
// transport error.
type Kind int

const (
	// InvalidRequest is a malformed URL or parameter set. Never
	// retried: it signals a programming bug, not a transient fault.
	InvalidRequest Kind = iota
	// NetworkUnavailable means no connectivity. Failed before any
	// request was attempted; never retried at the client layer.
	NetworkUnavailable
	// RateLimitExceeded covers both the local quota and a server 429.
	// Only the server variant is retried.
	RateLimitExceeded
	// Unauthorized is HTTP 401.
	Unauthorized
	// Forbidden is HTTP 403.
	Forbidden
	// ServerError is any 5xx. Retried with backoff.
	ServerError
	// DecodingError is a response-shape mismatch, i.e. API contract
	// drift. Never retried.
	DecodingError
	// GenericNetwork is the catch-all transport failure (DNS, TLS,
	// timeout). Retried with backoff.
	GenericNetwork
)

func (k Kind) String() string {
	switch k {
	case InvalidRequest:
		return "invalid_request"
	case NetworkUnavailable:
		return "network_unavailable"
	case RateLimitExceeded:
		return "rate_limit_exceeded"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case ServerError:
		return "server_error"
	case DecodingError:
		return "decoding_error"
	case GenericNetwork:
		return "network_error"
	default:
		return "unknown"
	}
}

// Error is a classified client failure.
type Error struct {
	Kind       Kind
	StatusCode int           // HTTP status, when one was received
	RetryAfter time.Duration // for RateLimitExceeded
	Server     bool          // rate limit reported by the server (429) vs local quota
	cause      error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (HTTP %d)", e.Kind, e.StatusCode)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether the client's attempt loop may retry this
// failure. Local quota exhaustion fails fast; a server 429 is retried
// honoring Retry-After.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ServerError, GenericNetwork:
		return true
	case RateLimitExceeded:
		return e.Server
	}
	return false
}

// UserMessage returns the message shown on user-facing surfaces.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case NetworkUnavailable:
		return "No internet connection. Please check your network settings."
	case RateLimitExceeded:
		return "Too many requests. Please wait before trying again."
	case Unauthorized, Forbidden:
		return "Access denied. Please check your API configuration."
	case ServerError:
		return "Server is temporarily unavailable. Please try again later."
	default:
		return "An unexpected error occurred. Please try again."
	}
}

// New wraps cause with a classification.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

// NewStatus classifies a failure carrying an HTTP status code.
func NewStatus(kind Kind, status int) *Error {
	return &Error{Kind: kind, StatusCode: status}
}

// NewRateLimit builds a rate-limit failure. server distinguishes a 429
// response from local quota exhaustion.
func NewRateLimit(retryAfter time.Duration, server bool) *Error {
	e := &Error{Kind: RateLimitExceeded, RetryAfter: retryAfter, Server: server}
	if server {
		e.StatusCode = 429
	}
	return e
}

// KindOf extracts the classification of err, or (0, false) when err is
// not a classified failure.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a classified failure of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Message returns the user-facing message for any error, using the
// generic fallback when err is unclassified.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.UserMessage()
	}
	return "An unexpected error occurred. Please try again."
}
