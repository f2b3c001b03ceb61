package search

import (
	"context"

	"github.com/pitabwire/pokerub/internal/provider"
	"github.com/pitabwire/pokerub/model"
)

// Backend is what the engine reads from.
type Backend interface {
	// Loaded returns the catalogue items loaded so far, in list order.
	Loaded() []model.CatalogueItem
	Search(ctx context.Context, query string) ([]model.CatalogueEntity, error)
	Detail(ctx context.Context, id int) (model.CatalogueEntity, error)
}

type providerBackend struct {
	catalogue *provider.CatalogueProvider
}

// NewProviderBackend reads the shared feed, searches and details of a
// catalogue provider, so every lookup goes through the query cache.
func NewProviderBackend(p *provider.CatalogueProvider) Backend {
	return providerBackend{catalogue: p}
}

func (b providerBackend) Loaded() []model.CatalogueItem {
	return b.catalogue.Feed().State().Items
}

func (b providerBackend) Search(ctx context.Context, query string) ([]model.CatalogueEntity, error) {
	res := b.catalogue.Search(ctx, query)
	return res.Data, res.Error
}

func (b providerBackend) Detail(ctx context.Context, id int) (model.CatalogueEntity, error) {
	res := b.catalogue.Detail(ctx, id)
	return res.Data, res.Error
}
