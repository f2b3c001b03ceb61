package model

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorEnvelope_Error(t *testing.T) {
	e := &ErrorEnvelope{Code: ErrNotFoundCode, Message: "Entity not found"}
	want := "NOT_FOUND: Entity not found"
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorEnvelope_implements_error(t *testing.T) {
	var _ error = (*ErrorEnvelope)(nil)
}

func TestRemoteFetchError_Is_not_found(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &RemoteFetchError{Operation: "getById", StatusCode: 404, Cause: errors.New("status 404")})
	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(404 RemoteFetchError, ErrNotFound) = false, want true")
	}

	other := &RemoteFetchError{Operation: "getById", StatusCode: 500, Cause: errors.New("boom")}
	if errors.Is(other, ErrNotFound) {
		t.Error("errors.Is(500 RemoteFetchError, ErrNotFound) = true, want false")
	}
}

func TestRemoteFetchError_Transient(t *testing.T) {
	tests := []struct {
		name string
		err  *RemoteFetchError
		want bool
	}{
		{"transport failure", &RemoteFetchError{Cause: errors.New("connection reset")}, true},
		{"server error", &RemoteFetchError{StatusCode: 503, Cause: errors.New("x")}, true},
		{"rate limited", &RemoteFetchError{StatusCode: 429, Cause: errors.New("x")}, true},
		{"not found", &RemoteFetchError{StatusCode: 404, Cause: errors.New("x")}, false},
		{"circuit open", &RemoteFetchError{Cause: ErrCircuitOpen}, false},
		{"canceled", &RemoteFetchError{Cause: context.Canceled}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Transient(); got != tt.want {
				t.Errorf("Transient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRemoteFetchError_Error_includes_operation(t *testing.T) {
	err := &RemoteFetchError{Operation: "listCatalogue", Cause: errors.New("dial tcp")}
	if got, want := err.Error(), "remote listCatalogue: dial tcp"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestPersistenceError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &PersistenceError{Operation: "set", Key: "favorites-storage", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(PersistenceError, cause) = false, want true")
	}
}

func TestEnvelopeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", &RemoteFetchError{Operation: "getByName", StatusCode: 404, Cause: errors.New("x")}, ErrNotFoundCode},
		{"timeout", &RemoteFetchError{Operation: "getById", Cause: context.DeadlineExceeded}, ErrBackendTimeout},
		{"unavailable", &RemoteFetchError{Operation: "getById", StatusCode: 502, Cause: errors.New("x")}, ErrBackendUnavailable},
		{"persistence", fmt.Errorf("add: %w", &PersistenceError{Operation: "set", Cause: errors.New("x")}), ErrPersistence},
		{"envelope passthrough", NewBadRequestError("bad id"), ErrBadRequest},
		{"unknown", errors.New("boom"), ErrInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnvelopeFor(tt.err).Code; got != tt.want {
				t.Errorf("EnvelopeFor().Code = %q, want %q", got, tt.want)
			}
		})
	}
}
