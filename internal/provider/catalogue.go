// Package provider exposes typed, cached reads and mutations over the
// repositories. Each method maps one UI-facing query or mutation onto a
// query.Client key with the staleness and retry policy of its kind.
package provider

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/pitabwire/pokerub/internal/query"
	"github.com/pitabwire/pokerub/model"
)

// CatalogueProvider serves catalogue reads and owns the shared infinite list.
type CatalogueProvider struct {
	repo         model.CatalogueRepository
	client       *query.Client
	feed         *query.Pager
	minSearchLen int
}

// NewCatalogueProvider creates a provider over repo. pageSize sizes the
// shared feed; queries shorter than minSearchLen never reach the remote API.
func NewCatalogueProvider(repo model.CatalogueRepository, client *query.Client, pageSize, minSearchLen int) *CatalogueProvider {
	p := &CatalogueProvider{
		repo:         repo,
		client:       client,
		minSearchLen: minSearchLen,
	}
	p.feed = query.NewPager(client, pageSize, repo.List)
	return p
}

// Feed returns the shared infinite catalogue list.
func (p *CatalogueProvider) Feed() *query.Pager { return p.feed }

// MinSearchLength returns the shortest query sent to the remote search.
func (p *CatalogueProvider) MinSearchLength() int { return p.minSearchLen }

// Page returns one cached list page.
func (p *CatalogueProvider) Page(ctx context.Context, limit, offset int) model.QueryResult[model.CataloguePage] {
	return query.Fetch(ctx, p.client, query.NewKey(query.KindList, limit, offset),
		func(ctx context.Context) (model.CataloguePage, error) {
			return p.repo.List(ctx, limit, offset)
		})
}

// Detail returns the entity with the given id.
func (p *CatalogueProvider) Detail(ctx context.Context, id int) model.QueryResult[model.CatalogueEntity] {
	return query.Fetch(ctx, p.client, query.NewKey(query.KindDetail, "id", id),
		func(ctx context.Context) (model.CatalogueEntity, error) {
			return p.repo.GetByID(ctx, id)
		})
}

// ByName returns the entity with the given name.
func (p *CatalogueProvider) ByName(ctx context.Context, name string) model.QueryResult[model.CatalogueEntity] {
	name = normalize(name)
	return query.Fetch(ctx, p.client, query.NewKey(query.KindDetail, "name", name),
		func(ctx context.Context) (model.CatalogueEntity, error) {
			return p.repo.GetByName(ctx, name)
		})
}

// IDByName resolves a name to its id.
func (p *CatalogueProvider) IDByName(ctx context.Context, name string) model.QueryResult[int] {
	name = normalize(name)
	return query.Fetch(ctx, p.client, query.NewKey(query.KindDetail, "id-of", name),
		func(ctx context.Context) (int, error) {
			return p.repo.GetIDByName(ctx, name)
		})
}

// Species returns the species metadata of the entity with the given id.
func (p *CatalogueProvider) Species(ctx context.Context, id int) model.QueryResult[model.SpeciesMeta] {
	return query.Fetch(ctx, p.client, query.NewKey(query.KindSpecies, id),
		func(ctx context.Context) (model.SpeciesMeta, error) {
			return p.repo.GetSpeciesMeta(ctx, id)
		})
}

// Search runs the remote search for q. Queries shorter than the minimum
// length resolve to an empty settled result without a request. A clean miss
// is an empty result; any other remote failure is reported in Error.
func (p *CatalogueProvider) Search(ctx context.Context, q string) model.QueryResult[[]model.CatalogueEntity] {
	q = normalize(q)
	if utf8.RuneCountInString(q) < p.minSearchLen {
		return model.QueryResult[[]model.CatalogueEntity]{Data: []model.CatalogueEntity{}}
	}
	return query.Fetch(ctx, p.client, query.NewKey(query.KindSearch, q),
		func(ctx context.Context) ([]model.CatalogueEntity, error) {
			return p.repo.Lookup(ctx, q)
		})
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
