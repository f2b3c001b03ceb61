// Package repository holds the three collection repositories of the data
// layer. Catalogue and evolution repositories delegate to the remote client;
// the favorites repository owns the read-modify-write cycle over the local
// store's favorites document.
package repository

import (
	"context"

	"github.com/pitabwire/pokerub/model"
)

// CatalogueSource is the subset of the remote client the catalogue
// repository needs.
type CatalogueSource interface {
	ListCatalogue(ctx context.Context, limit, offset int) (model.CataloguePage, error)
	GetByID(ctx context.Context, id int) (model.CatalogueEntity, error)
	GetByName(ctx context.Context, name string) (model.CatalogueEntity, error)
	GetIDByName(ctx context.Context, name string) (int, error)
	Search(ctx context.Context, query string) []model.CatalogueEntity
	Lookup(ctx context.Context, query string) ([]model.CatalogueEntity, error)
	GetSpeciesMeta(ctx context.Context, id int) (model.SpeciesMeta, error)
}

// Catalogue implements model.CatalogueRepository.
type Catalogue struct {
	source CatalogueSource
}

var _ model.CatalogueRepository = (*Catalogue)(nil)

// NewCatalogue creates a catalogue repository over source.
func NewCatalogue(source CatalogueSource) *Catalogue {
	return &Catalogue{source: source}
}

func (r *Catalogue) List(ctx context.Context, limit, offset int) (model.CataloguePage, error) {
	return r.source.ListCatalogue(ctx, limit, offset)
}

func (r *Catalogue) GetByID(ctx context.Context, id int) (model.CatalogueEntity, error) {
	return r.source.GetByID(ctx, id)
}

func (r *Catalogue) GetByName(ctx context.Context, name string) (model.CatalogueEntity, error) {
	return r.source.GetByName(ctx, name)
}

func (r *Catalogue) GetIDByName(ctx context.Context, name string) (int, error) {
	return r.source.GetIDByName(ctx, name)
}

func (r *Catalogue) Search(ctx context.Context, query string) []model.CatalogueEntity {
	return r.source.Search(ctx, query)
}

func (r *Catalogue) Lookup(ctx context.Context, query string) ([]model.CatalogueEntity, error) {
	return r.source.Lookup(ctx, query)
}

func (r *Catalogue) GetSpeciesMeta(ctx context.Context, id int) (model.SpeciesMeta, error) {
	return r.source.GetSpeciesMeta(ctx, id)
}
