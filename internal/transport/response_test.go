package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pitabwire/pokerub/model"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]string{"hello": "world"})

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if xct := w.Header().Get("X-Content-Type-Options"); xct != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", xct)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["hello"] != "world" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteError_envelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, nil, model.NewNotFoundError("creature not found"))

	if w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}

	var resp struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Error.Code != model.ErrNotFoundCode {
		t.Errorf("code = %q, want NOT_FOUND", resp.Error.Code)
	}
}

func TestWriteError_unknownErrorIs500(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, nil, fmt.Errorf("something went wrong"))

	if w.Code != 500 {
		t.Errorf("status = %d, want 500 for unknown error", w.Code)
	}
}

func TestWriteError_domainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "remote 404",
			err:    &model.RemoteFetchError{Operation: "getById", StatusCode: 404, Cause: errors.New("missing")},
			status: 404, code: model.ErrNotFoundCode,
		},
		{
			name:   "remote 503",
			err:    &model.RemoteFetchError{Operation: "getById", StatusCode: 503, Cause: errors.New("down")},
			status: 502, code: model.ErrBackendUnavailable,
		},
		{
			name:   "remote timeout",
			err:    &model.RemoteFetchError{Operation: "getById", Cause: context.DeadlineExceeded},
			status: 504, code: model.ErrBackendTimeout,
		},
		{
			name:   "persistence",
			err:    &model.PersistenceError{Operation: "set", Key: "favorites-storage", Cause: errors.New("disk full")},
			status: 500, code: model.ErrPersistence,
		},
		{
			name:   "bad request",
			err:    model.NewBadRequestError("nope"),
			status: 400, code: model.ErrBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, httptest.NewRequest("GET", "/", nil), tt.err)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var resp struct {
				Error model.ErrorEnvelope `json:"error"`
			}
			json.NewDecoder(w.Body).Decode(&resp)
			if resp.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.code)
			}
		})
	}
}

func TestWriteResult(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	w := httptest.NewRecorder()
	writeResult(w, nil, model.QueryResult[int]{Data: 25, IsStale: true, UpdatedAt: now})
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Data      int       `json:"data"`
		IsStale   bool      `json:"isStale"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if body.Data != 25 || !body.IsStale || !body.UpdatedAt.Equal(now) {
		t.Errorf("body = %+v", body)
	}

	w = httptest.NewRecorder()
	writeResult(w, nil, model.QueryResult[int]{Error: &model.RemoteFetchError{Operation: "getById", StatusCode: 404}})
	if w.Code != 404 {
		t.Errorf("error status = %d, want 404", w.Code)
	}
}

func TestStatusForCode_coverage(t *testing.T) {
	codes := []struct {
		code   string
		status int
	}{
		{model.ErrBadRequest, 400},
		{model.ErrNotFoundCode, 404},
		{model.ErrInternalError, 500},
		{model.ErrBackendUnavailable, 502},
		{model.ErrBackendTimeout, 504},
		{model.ErrPersistence, 500},
	}
	for _, tc := range codes {
		t.Run(tc.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, nil, &model.ErrorEnvelope{Code: tc.code, Message: "test"})
			if w.Code != tc.status {
				t.Errorf("status for %s = %d, want %d", tc.code, w.Code, tc.status)
			}
		})
	}
}
