package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable covers connection failures, timeouts, 5xx responses
	// and anything unclassified.
	ErrUnavailable = errors.New("generation provider unavailable")

	// ErrRateLimited is returned when the backend answers 429.
	ErrRateLimited = errors.New("generation provider rate limited")

	// ErrRejected is returned when the backend refuses the request:
	// bad request, authentication, unknown model or unprocessable input.
	ErrRejected = errors.New("generation request rejected")
)

// Error is a classified provider failure.
type Error struct {
	// Kind is one of ErrUnavailable, ErrRateLimited, ErrRejected.
	Kind error

	Provider string

	// StatusCode is the upstream HTTP status, zero when none was received.
	StatusCode int

	Err error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %v (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindForStatus maps an upstream HTTP status to an error kind.
func KindForStatus(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusUnprocessableEntity:
		return ErrRejected
	default:
		return ErrUnavailable
	}
}

// NewStatusError classifies err by the HTTP status it came with.
func NewStatusError(provider string, status int, err error) *Error {
	return &Error{Kind: KindForStatus(status), Provider: provider, StatusCode: status, Err: err}
}

// NewUnavailableError wraps a transport-level failure. Context cancellation
// and deadline errors stay reachable through errors.Is.
func NewUnavailableError(provider string, err error) *Error {
	return &Error{Kind: ErrUnavailable, Provider: provider, Err: err}
}
