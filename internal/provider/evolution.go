package provider

import (
	"context"
	"errors"
	"net/http"

	"github.com/pitabwire/pokerub/internal/query"
	"github.com/pitabwire/pokerub/model"
)

// opChainForEntity names the failure of resolving an entity's chain.
const opChainForEntity = "getEvolutionChain"

// EvolutionProvider serves evolution chains.
type EvolutionProvider struct {
	repo      model.EvolutionRepository
	catalogue *CatalogueProvider
	client    *query.Client
}

// NewEvolutionProvider creates a provider over repo. catalogue serves stage
// entities and shares its species cache.
func NewEvolutionProvider(repo model.EvolutionRepository, catalogue *CatalogueProvider, client *query.Client) *EvolutionProvider {
	return &EvolutionProvider{repo: repo, catalogue: catalogue, client: client}
}

// Chain resolves the entity's species, then the chain its species points to.
// Every member of a family shares the cached chain.
func (p *EvolutionProvider) Chain(ctx context.Context, entityID int) model.QueryResult[model.EvolutionChain] {
	return query.Fetch(ctx, p.client, query.NewKey(query.KindEvolution, "entity", entityID),
		func(ctx context.Context) (model.EvolutionChain, error) {
			meta := p.catalogue.Species(ctx, entityID)
			if meta.Error != nil {
				return model.EvolutionChain{}, meta.Error
			}
			if meta.Data.EvolutionChainURL == "" {
				return model.EvolutionChain{}, &model.RemoteFetchError{
					Operation:  opChainForEntity,
					StatusCode: http.StatusNotFound,
					Cause:      errors.New("species has no evolution chain"),
				}
			}
			res := p.ChainByURL(ctx, meta.Data.EvolutionChainURL)
			return res.Data, res.Error
		})
}

// ChainByURL returns the chain at url.
func (p *EvolutionProvider) ChainByURL(ctx context.Context, url string) model.QueryResult[model.EvolutionChain] {
	return query.Fetch(ctx, p.client, query.NewKey(query.KindEvolution, "url", url),
		func(ctx context.Context) (model.EvolutionChain, error) {
			return p.repo.GetChain(ctx, url)
		})
}

// StageEntity returns the entity of one chain stage by species name.
func (p *EvolutionProvider) StageEntity(ctx context.Context, name string) model.QueryResult[model.CatalogueEntity] {
	return p.catalogue.ByName(ctx, name)
}
