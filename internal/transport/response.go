// Package transport contains the HTTP router, middleware chain, and request
// handlers that expose the catalogue data layer as a JSON API.
package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pitabwire/pokerub/internal/observability"
	"github.com/pitabwire/pokerub/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes.
var statusForCode = map[string]int{
	model.ErrBadRequest:         http.StatusBadRequest,
	model.ErrNotFoundCode:       http.StatusNotFound,
	model.ErrInternalError:      http.StatusInternalServerError,
	model.ErrBackendUnavailable: http.StatusBadGateway,
	model.ErrBackendTimeout:     http.StatusGatewayTimeout,
	model.ErrPersistence:        http.StatusInternalServerError,
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes err as an ErrorEnvelope with the matching HTTP status.
// Domain errors are mapped by model.EnvelopeFor; anything else is a 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	ee := model.EnvelopeFor(err)
	if r != nil && ee.TraceID == "" {
		// Copy so shared envelopes are never mutated.
		cp := *ee
		cp.TraceID = observability.TraceIDFromContext(r.Context())
		ee = &cp
	}

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}

	type errorResponse struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	WriteJSON(w, status, errorResponse{Error: ee})
}

// WriteBadRequest writes a 400 error response.
func WriteBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	WriteError(w, r, model.NewBadRequestError(msg))
}

// resultResponse is the wire form of a settled query result.
type resultResponse[T any] struct {
	Data      T         `json:"data"`
	IsStale   bool      `json:"isStale"`
	IsLoading bool      `json:"isLoading"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// writeResult writes a query result, or its error when no value settled.
func writeResult[T any](w http.ResponseWriter, r *http.Request, res model.QueryResult[T]) {
	if res.Error != nil && !res.HasData() {
		WriteError(w, r, res.Error)
		return
	}
	WriteJSON(w, http.StatusOK, resultResponse[T]{
		Data:      res.Data,
		IsStale:   res.IsStale,
		IsLoading: res.IsLoading,
		UpdatedAt: res.UpdatedAt,
	})
}

// pageResponse is the wire form of the shared feed.
type pageResponse struct {
	model.PageState
	Error *model.ErrorEnvelope `json:"error,omitempty"`
}

func newPageResponse(st model.PageState) pageResponse {
	resp := pageResponse{PageState: st}
	if resp.Items == nil {
		resp.Items = []model.CatalogueItem{}
	}
	if st.Error != nil {
		resp.Error = model.EnvelopeFor(st.Error)
	}
	return resp
}
