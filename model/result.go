package model

import "time"

// QueryResult is the UI-facing state of one cached read.
type QueryResult[T any] struct {
	Data      T         `json:"data"`
	IsLoading bool      `json:"isLoading"`
	IsStale   bool      `json:"isStale"`
	Error     error     `json:"-"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// HasData reports whether the result carries a settled value.
func (r QueryResult[T]) HasData() bool { return !r.UpdatedAt.IsZero() }

// PageState is the UI-facing state of an accumulated paginated list.
type PageState struct {
	Items              []CatalogueItem `json:"items"`
	TotalCount         int             `json:"totalCount"`
	Pages              int             `json:"pages"`
	HasNextPage        bool            `json:"hasNextPage"`
	IsFetchingNextPage bool            `json:"isFetchingNextPage"`
	Error              error           `json:"-"`
}

// MutationState is the UI-facing state of a mutation.
type MutationState struct {
	IsPending bool  `json:"isPending"`
	Error     error `json:"-"`
}
