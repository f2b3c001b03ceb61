package model

import "time"

// Favorite is one entry of the persisted favorites collection. ID is the
// dedup key; entries are never mutated in place.
type Favorite struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	ImageURL string   `json:"imageUrl"`
	Types    []string `json:"types"`
	AddedAt  string   `json:"addedAt"`
}

// FavoriteStorage is the persisted document holding all favorites in
// insertion order.
type FavoriteStorage struct {
	Favorites []Favorite `json:"favorites"`
}

// Index returns the position of id in the collection, or -1.
func (s FavoriteStorage) Index(id int) int {
	for i, f := range s.Favorites {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// NewFavorite builds a favorite from a detail entity.
func NewFavorite(e CatalogueEntity, now time.Time) Favorite {
	types := make([]string, 0, len(e.Types))
	for _, t := range e.TypeTags() {
		types = append(types, string(t))
	}
	return Favorite{
		ID:       e.ID,
		Name:     e.Name,
		ImageURL: e.Sprites.PrimaryImage(),
		Types:    types,
		AddedAt:  now.UTC().Format(time.RFC3339Nano),
	}
}
