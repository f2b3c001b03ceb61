package model

import "context"

// CatalogueRepository is the read contract over the remote catalogue.
type CatalogueRepository interface {
	// List returns one page of catalogue items.
	List(ctx context.Context, limit, offset int) (CataloguePage, error)

	// GetByID returns the detail entity with the given id.
	GetByID(ctx context.Context, id int) (CatalogueEntity, error)

	// GetByName returns the detail entity with the given name, matched
	// case-insensitively.
	GetByName(ctx context.Context, name string) (CatalogueEntity, error)

	// GetIDByName resolves a name to its numeric id.
	GetIDByName(ctx context.Context, name string) (int, error)

	// Search resolves a free-text query by name, then by id. It never fails;
	// a miss is an empty slice.
	Search(ctx context.Context, query string) []CatalogueEntity

	// Lookup resolves query like Search but returns failures other than a
	// clean miss, so callers can show a fallback alongside the error.
	Lookup(ctx context.Context, query string) ([]CatalogueEntity, error)

	// GetSpeciesMeta returns the species metadata of the entity with the given id.
	GetSpeciesMeta(ctx context.Context, id int) (SpeciesMeta, error)
}

// EvolutionRepository is the read contract over evolution data.
type EvolutionRepository interface {
	GetChain(ctx context.Context, url string) (EvolutionChain, error)
	GetSpeciesMeta(ctx context.Context, id int) (SpeciesMeta, error)
}

// FavoriteRepository is the contract over the persisted favorites document.
type FavoriteRepository interface {
	// List returns every favorite in insertion order.
	List(ctx context.Context) ([]Favorite, error)

	// Add appends f unless a favorite with the same id is already stored.
	Add(ctx context.Context, f Favorite) error

	// Remove deletes the favorite with the given id. Removing an absent id
	// is not an error.
	Remove(ctx context.Context, id int) error

	// Exists reports whether a favorite with the given id is stored.
	Exists(ctx context.Context, id int) (bool, error)

	// Clear deletes every favorite.
	Clear(ctx context.Context) error
}
