package query

import (
	"context"
	"sync"

	"github.com/pitabwire/pokerub/model"
)

// Mutation runs a write with the mutation retry budget and invalidates the
// given kinds after every success.
type Mutation[In, Out any] struct {
	client      *Client
	name        string
	fn          func(context.Context, In) (Out, error)
	invalidates []string

	mu      sync.Mutex
	pending int
	lastErr error
}

// NewMutation creates a mutation named name over fn.
func NewMutation[In, Out any](c *Client, name string, fn func(context.Context, In) (Out, error), invalidates ...string) *Mutation[In, Out] {
	return &Mutation[In, Out]{client: c, name: name, fn: fn, invalidates: invalidates}
}

// Mutate runs the write. Cached entries of the invalidated kinds are dropped
// before Mutate returns successfully.
func (m *Mutation[In, Out]) Mutate(ctx context.Context, in In) (Out, error) {
	m.mu.Lock()
	m.pending++
	m.mu.Unlock()

	out, err := retry(ctx, m.client, m.name, m.client.mutationRetries, func(ctx context.Context) (Out, error) {
		return m.fn(ctx, in)
	})
	if err == nil {
		m.client.Invalidate(m.invalidates...)
	}

	m.mu.Lock()
	m.pending--
	m.lastErr = err
	m.mu.Unlock()
	return out, err
}

// State reports whether a call is pending and the error of the last call.
func (m *Mutation[In, Out]) State() model.MutationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.MutationState{IsPending: m.pending > 0, Error: m.lastErr}
}
