package apierr

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestError_Retryable(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want bool
	}{
		{"server 5xx", NewStatus(ServerError, 503), true},
		{"generic network", New(GenericNetwork, errors.New("dial timeout")), true},
		{"server 429", NewRateLimit(5*time.Second, true), true},
		{"local quota", NewRateLimit(30*time.Second, false), false},
		{"unauthorized", NewStatus(Unauthorized, 401), false},
		{"forbidden", NewStatus(Forbidden, 403), false},
		{"decode", New(DecodingError, errors.New("bad json")), false},
		{"invalid request", New(InvalidRequest, nil), false},
		{"unreachable", New(NetworkUnavailable, nil), false},
	}

	for _, tt := range tests {
		if got := tt.err.Retryable(); got != tt.want {
			t.Errorf("%s: Retryable() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := NewStatus(ServerError, 500)
	wrapped := fmt.Errorf("fetch top coins: %w", inner)

	k, ok := KindOf(wrapped)
	if !ok || k != ServerError {
		t.Errorf("KindOf(wrapped) = (%v, %v), want (ServerError, true)", k, ok)
	}
	if !IsKind(wrapped, ServerError) {
		t.Error("IsKind should see through wrapping")
	}
	if IsKind(errors.New("plain"), ServerError) {
		t.Error("plain errors are not classified")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{New(NetworkUnavailable, nil), "No internet connection. Please check your network settings."},
		{NewRateLimit(time.Minute, false), "Too many requests. Please wait before trying again."},
		{NewStatus(Unauthorized, 401), "Access denied. Please check your API configuration."},
		{NewStatus(ServerError, 502), "Server is temporarily unavailable. Please try again later."},
		{errors.New("anything"), "An unexpected error occurred. Please try again."},
	}
	for _, tt := range tests {
		if got := Message(tt.err); got != tt.want {
			t.Errorf("Message(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
