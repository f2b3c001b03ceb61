package repository

import (
	"context"

	"github.com/pitabwire/pokerub/model"
)

// EvolutionSource is the subset of the remote client the evolution
// repository needs.
type EvolutionSource interface {
	GetEvolutionChain(ctx context.Context, url string) (model.EvolutionChain, error)
	GetSpeciesMeta(ctx context.Context, id int) (model.SpeciesMeta, error)
}

// Evolution implements model.EvolutionRepository.
type Evolution struct {
	source EvolutionSource
}

var _ model.EvolutionRepository = (*Evolution)(nil)

// NewEvolution creates an evolution repository over source.
func NewEvolution(source EvolutionSource) *Evolution {
	return &Evolution{source: source}
}

func (r *Evolution) GetChain(ctx context.Context, url string) (model.EvolutionChain, error) {
	return r.source.GetEvolutionChain(ctx, url)
}

func (r *Evolution) GetSpeciesMeta(ctx context.Context, id int) (model.SpeciesMeta, error) {
	return r.source.GetSpeciesMeta(ctx, id)
}
