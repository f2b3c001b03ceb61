package repository

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/pitabwire/pokerub/internal/observability"
	"github.com/pitabwire/pokerub/internal/store"
	"github.com/pitabwire/pokerub/model"
)

// Favorites implements model.FavoriteRepository over one store key holding a
// model.FavoriteStorage document. Every mutation reads the whole document,
// applies the change and writes it back. The mutex serializes those cycles
// within the process; writers in other processes sharing the same backend
// still race and the last write wins.
type Favorites struct {
	mu      sync.Mutex
	store   *store.Store
	key     string
	logger  *zap.Logger
	metrics *observability.Metrics
}

var _ model.FavoriteRepository = (*Favorites)(nil)

// NewFavorites creates a favorites repository persisting under key.
func NewFavorites(s *store.Store, key string, logger *zap.Logger, metrics *observability.Metrics) *Favorites {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Favorites{
		store:   s,
		key:     key,
		logger:  logger.Named("favorites"),
		metrics: metrics,
	}
}

// List returns every favorite in insertion order. A missing or corrupt
// document is an empty list; a failed read is a model.PersistenceError.
func (r *Favorites) List(ctx context.Context) ([]model.Favorite, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Favorites, nil
}

// Add appends f. Adding an id that is already stored leaves the document
// untouched. Nothing is written when the current document cannot be read.
func (r *Favorites) Add(ctx context.Context, f model.Favorite) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load(ctx)
	if err != nil {
		return err
	}
	if doc.Index(f.ID) >= 0 {
		observability.RequestLogger(ctx, r.logger).Debug("favorite already stored", zap.Int("id", f.ID))
		return nil
	}
	doc.Favorites = append(doc.Favorites, f)
	return r.save(ctx, doc)
}

// Remove deletes the favorite with the given id.
func (r *Favorites) Remove(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load(ctx)
	if err != nil {
		return err
	}
	i := doc.Index(id)
	if i < 0 {
		return nil
	}
	doc.Favorites = slices.Delete(doc.Favorites, i, i+1)
	return r.save(ctx, doc)
}

// Exists reports whether id is stored.
func (r *Favorites) Exists(ctx context.Context, id int) (bool, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return false, err
	}
	return doc.Index(id) >= 0, nil
}

// Clear removes the favorites document.
func (r *Favorites) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Remove(ctx, r.key); err != nil {
		return err
	}
	r.metrics.SetFavoritesCount(0)
	return nil
}

func (r *Favorites) load(ctx context.Context) (model.FavoriteStorage, error) {
	doc, _, err := store.Get[model.FavoriteStorage](ctx, r.store, r.key)
	if err != nil {
		return model.FavoriteStorage{}, err
	}
	if doc.Favorites == nil {
		doc.Favorites = []model.Favorite{}
	}
	return doc, nil
}

func (r *Favorites) save(ctx context.Context, doc model.FavoriteStorage) error {
	if err := store.Set(ctx, r.store, r.key, doc); err != nil {
		return err
	}
	r.metrics.SetFavoritesCount(len(doc.Favorites))
	return nil
}
