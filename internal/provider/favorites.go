package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/pokerub/internal/observability"
	"github.com/pitabwire/pokerub/internal/query"
	"github.com/pitabwire/pokerub/model"
)

// FavoritesProvider is the favorites engine: cached membership reads and
// mutations that invalidate every favorites entry on success.
type FavoritesProvider struct {
	repo      model.FavoriteRepository
	catalogue *CatalogueProvider
	client    *query.Client
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time

	add    *query.Mutation[model.Favorite, struct{}]
	remove *query.Mutation[int, struct{}]
	clear  *query.Mutation[struct{}, struct{}]
}

// NewFavoritesProvider creates the favorites engine over repo. catalogue
// resolves entities for AddByID.
func NewFavoritesProvider(repo model.FavoriteRepository, catalogue *CatalogueProvider, client *query.Client, logger *zap.Logger, metrics *observability.Metrics) *FavoritesProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &FavoritesProvider{
		repo:      repo,
		catalogue: catalogue,
		client:    client,
		logger:    logger.Named("favorites"),
		metrics:   metrics,
		now:       time.Now,
	}
	p.add = query.NewMutation(client, "favorites.add",
		func(ctx context.Context, f model.Favorite) (struct{}, error) {
			return struct{}{}, repo.Add(ctx, f)
		}, query.KindFavorites)
	p.remove = query.NewMutation(client, "favorites.remove",
		func(ctx context.Context, id int) (struct{}, error) {
			return struct{}{}, repo.Remove(ctx, id)
		}, query.KindFavorites)
	p.clear = query.NewMutation(client, "favorites.clear",
		func(ctx context.Context, _ struct{}) (struct{}, error) {
			return struct{}{}, repo.Clear(ctx)
		}, query.KindFavorites)
	return p
}

// List returns every favorite in insertion order.
func (p *FavoritesProvider) List(ctx context.Context) model.QueryResult[[]model.Favorite] {
	return query.Fetch(ctx, p.client, query.NewKey(query.KindFavorites, "list"), p.repo.List)
}

// IsFavorite reports whether id is stored.
func (p *FavoritesProvider) IsFavorite(ctx context.Context, id int) model.QueryResult[bool] {
	return query.Fetch(ctx, p.client, query.NewKey(query.KindFavorites, "exists", id),
		func(ctx context.Context) (bool, error) {
			return p.repo.Exists(ctx, id)
		})
}

// Add stores e as a favorite. Adding a stored id is a no-op.
func (p *FavoritesProvider) Add(ctx context.Context, e model.CatalogueEntity) (model.Favorite, error) {
	f := model.NewFavorite(e, p.now())
	return f, p.AddFavorite(ctx, f)
}

// AddFavorite stores f. Adding a stored id is a no-op.
func (p *FavoritesProvider) AddFavorite(ctx context.Context, f model.Favorite) error {
	_, err := p.add.Mutate(ctx, f)
	p.record(ctx, "add", err, zap.Int("id", f.ID))
	return err
}

// AddByID fetches the entity with the given id and stores it as a favorite.
func (p *FavoritesProvider) AddByID(ctx context.Context, id int) (model.Favorite, error) {
	detail := p.catalogue.Detail(ctx, id)
	if detail.Error != nil {
		return model.Favorite{}, detail.Error
	}
	return p.Add(ctx, detail.Data)
}

// Remove deletes the favorite with the given id.
func (p *FavoritesProvider) Remove(ctx context.Context, id int) error {
	_, err := p.remove.Mutate(ctx, id)
	p.record(ctx, "remove", err, zap.Int("id", id))
	return err
}

// Clear deletes every favorite.
func (p *FavoritesProvider) Clear(ctx context.Context) error {
	_, err := p.clear.Mutate(ctx, struct{}{})
	p.record(ctx, "clear", err)
	return err
}

// AddState reports the state of the add mutation.
func (p *FavoritesProvider) AddState() model.MutationState { return p.add.State() }

// RemoveState reports the state of the remove mutation.
func (p *FavoritesProvider) RemoveState() model.MutationState { return p.remove.State() }

// ClearState reports the state of the clear mutation.
func (p *FavoritesProvider) ClearState() model.MutationState { return p.clear.State() }

func (p *FavoritesProvider) record(ctx context.Context, op string, err error, fields ...zap.Field) {
	logger := observability.RequestLogger(ctx, p.logger)
	if err != nil {
		p.metrics.RecordFavoritesMutation(op, "error")
		logger.Error("favorites mutation failed", append(fields, zap.String("operation", op), zap.Error(err))...)
		return
	}
	p.metrics.RecordFavoritesMutation(op, "ok")
	logger.Info("favorites updated", append(fields, zap.String("operation", op))...)
}
