// Package store is the local key-value persistence layer. A Backend holds raw
// bytes per key; Store layers a JSON codec on top with the degradation rules
// the rest of the data layer relies on: a missing key and an undecodable value
// both read as absent, and every backend failure is a model.PersistenceError.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/pitabwire/pokerub/internal/observability"
	"github.com/pitabwire/pokerub/model"
)

// Backend persists raw values by key.
type Backend interface {
	// Get returns the value stored under key. found is false when the key
	// is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	// Clear removes every key owned by the backend.
	Clear(ctx context.Context) error
	Close() error
}

// pinger is implemented by backends that talk to a server or file handle.
type pinger interface {
	HealthCheck(ctx context.Context) error
}

// Store is a JSON key-value store over a Backend.
type Store struct {
	backend Backend
	driver  string
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Option customises a Store.
type Option func(*Store)

// WithMetrics records store operations on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New wraps backend. driver labels logs and metrics.
func New(driver string, backend Backend, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		backend: backend,
		driver:  driver,
		logger:  logger.Named("store").With(zap.String("driver", driver)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Driver returns the name of the backing driver.
func (s *Store) Driver() string { return s.driver }

// Get decodes the value stored under key. A missing key and an undecodable
// value both report found=false with a nil error. A backend failure is
// returned as a model.PersistenceError so callers never mistake it for an
// empty value.
func Get[T any](ctx context.Context, s *Store, key string) (value T, found bool, err error) {
	ctx, span := observability.StartSpan(ctx, "store.get",
		observability.AttrStoreDriver.String(s.driver),
		observability.AttrStoreKey.String(key))
	defer func() { observability.EndSpanWithError(span, err) }()

	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return value, false, s.fail(ctx, "get", key, err)
	}
	if !ok {
		s.metrics.RecordStoreOperation(s.driver, "get", "miss")
		return value, false, nil
	}

	if err := json.Unmarshal(raw, &value); err != nil {
		var zero T
		s.metrics.RecordStoreOperation(s.driver, "get", "corrupt")
		s.metrics.RecordStoreCorruptValue()
		observability.RequestLogger(ctx, s.logger).Warn("stored value is corrupt, treating as absent",
			zap.String("key", key), zap.Error(err))
		return zero, false, nil
	}
	s.metrics.RecordStoreOperation(s.driver, "get", "ok")
	return value, true, nil
}

// Set encodes value and stores it under key.
func Set[T any](ctx context.Context, s *Store, key string, value T) (err error) {
	ctx, span := observability.StartSpan(ctx, "store.set",
		observability.AttrStoreDriver.String(s.driver),
		observability.AttrStoreKey.String(key))
	defer func() { observability.EndSpanWithError(span, err) }()

	raw, err := json.Marshal(value)
	if err != nil {
		return s.fail(ctx, "set", key, err)
	}
	if err := s.backend.Set(ctx, key, raw); err != nil {
		return s.fail(ctx, "set", key, err)
	}
	s.metrics.RecordStoreOperation(s.driver, "set", "ok")
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.backend.Remove(ctx, key); err != nil {
		return s.fail(ctx, "remove", key, err)
	}
	s.metrics.RecordStoreOperation(s.driver, "remove", "ok")
	return nil
}

// Clear removes every key owned by the store.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.Clear(ctx); err != nil {
		return s.fail(ctx, "clear", "", err)
	}
	s.metrics.RecordStoreOperation(s.driver, "clear", "ok")
	return nil
}

// HealthCheck pings the backend when it supports it.
func (s *Store) HealthCheck(ctx context.Context) error {
	if p, ok := s.backend.(pinger); ok {
		return p.HealthCheck(ctx)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) fail(ctx context.Context, op, key string, cause error) error {
	s.metrics.RecordStoreOperation(s.driver, op, "error")
	observability.RequestLogger(ctx, s.logger).Error("store operation failed",
		zap.String("operation", op), zap.String("key", key), zap.Error(cause))

	var pe *model.PersistenceError
	if errors.As(cause, &pe) {
		return pe
	}
	return &model.PersistenceError{Operation: op, Key: key, Cause: cause}
}
