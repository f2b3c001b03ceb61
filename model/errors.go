package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Standard error codes.
const (
	ErrBadRequest         = "BAD_REQUEST"
	ErrNotFoundCode       = "NOT_FOUND"
	ErrInternalError      = "INTERNAL_ERROR"
	ErrBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrBackendTimeout     = "BACKEND_TIMEOUT"
	ErrPersistence        = "PERSISTENCE_ERROR"
)

var (
	// ErrNotFound matches a RemoteFetchError for a resource the remote API
	// reported as missing.
	ErrNotFound = errors.New("not found")

	// ErrCircuitOpen is the cause of a RemoteFetchError rejected by an open
	// circuit breaker.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// RemoteFetchError wraps every failure of a call to the remote catalogue API.
type RemoteFetchError struct {
	Operation  string
	StatusCode int
	Cause      error
}

func (e *RemoteFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s: status %d: %v", e.Operation, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("remote %s: %v", e.Operation, e.Cause)
}

func (e *RemoteFetchError) Unwrap() error { return e.Cause }

// Is reports a 404 response as ErrNotFound.
func (e *RemoteFetchError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Transient reports whether retrying the same call may succeed.
func (e *RemoteFetchError) Transient() bool {
	if errors.Is(e.Cause, ErrCircuitOpen) || errors.Is(e.Cause, context.Canceled) {
		return false
	}
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// PersistenceError wraps a failed write, remove or clear of the local store.
type PersistenceError struct {
	Operation string
	Key       string
	Cause     error
}

func (e *PersistenceError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("persistence %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("persistence %s %q: %v", e.Operation, e.Key, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// MalformedIDError reports a list row whose resource URL carries no
// trailing numeric segment.
type MalformedIDError struct {
	URL string
}

func (e *MalformedIDError) Error() string {
	return fmt.Sprintf("no numeric id in resource url %q", e.URL)
}

// ErrorEnvelope is the standard error response envelope returned over HTTP.
// It implements the error interface.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFoundCode, Message: msg}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewBackendUnavailableError returns a BACKEND_UNAVAILABLE error.
func NewBackendUnavailableError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBackendUnavailable,
		Message: "The catalogue API is temporarily unavailable",
	}
}

// NewBackendTimeoutError returns a BACKEND_TIMEOUT error.
func NewBackendTimeoutError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBackendTimeout,
		Message: "The catalogue API did not respond in time",
	}
}

// NewPersistenceError returns a PERSISTENCE_ERROR.
func NewPersistenceError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrPersistence,
		Message: "Local storage could not be updated",
	}
}

// EnvelopeFor maps a domain error onto the HTTP error envelope.
func EnvelopeFor(err error) *ErrorEnvelope {
	var ee *ErrorEnvelope
	if errors.As(err, &ee) {
		return ee
	}

	var rfe *RemoteFetchError
	if errors.As(err, &rfe) {
		switch {
		case errors.Is(rfe, ErrNotFound):
			return NewNotFoundError(fmt.Sprintf("%s: resource not found", rfe.Operation))
		case errors.Is(rfe.Cause, context.DeadlineExceeded):
			return NewBackendTimeoutError()
		default:
			return NewBackendUnavailableError()
		}
	}

	var pe *PersistenceError
	if errors.As(err, &pe) {
		return NewPersistenceError()
	}

	return NewInternalError()
}
