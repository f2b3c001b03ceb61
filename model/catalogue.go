package model

// CatalogueItem is one row of the remote list endpoint. Identity is ID.
type CatalogueItem struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	DetailURL string `json:"url"`
}

// CataloguePage is one page of the remote list endpoint.
type CataloguePage struct {
	Count    int             `json:"count"`
	Next     string          `json:"next,omitempty"`
	Previous string          `json:"previous,omitempty"`
	Results  []CatalogueItem `json:"results"`
}

// NamedRef is a named pointer to another remote resource.
type NamedRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TypeSlot is one entry of an entity's ordered type list.
type TypeSlot struct {
	Slot int     `json:"slot"`
	Type TypeTag `json:"type"`
}

// AbilityRef names one ability of an entity.
type AbilityRef struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	IsHidden bool   `json:"is_hidden"`
	Slot     int    `json:"slot"`
}

// StatEntry is one base stat of an entity.
type StatEntry struct {
	StatName  string `json:"stat_name"`
	BaseValue int    `json:"base_value"`
	Effort    int    `json:"effort"`
}

// ImageSet holds the sprite URLs of an entity. Empty strings mean absent.
type ImageSet struct {
	FrontDefault    string `json:"front_default,omitempty"`
	FrontShiny      string `json:"front_shiny,omitempty"`
	BackDefault     string `json:"back_default,omitempty"`
	BackShiny       string `json:"back_shiny,omitempty"`
	OfficialArtwork string `json:"official_artwork,omitempty"`
	OfficialShiny   string `json:"official_artwork_shiny,omitempty"`
	Home            string `json:"home,omitempty"`
	DreamWorld      string `json:"dream_world,omitempty"`
}

// PrimaryImage returns the official artwork, falling back to the default
// front sprite, or "" when neither is known.
func (s ImageSet) PrimaryImage() string {
	if s.OfficialArtwork != "" {
		return s.OfficialArtwork
	}
	return s.FrontDefault
}

// CatalogueEntity is the fully expanded record of one catalogue item.
type CatalogueEntity struct {
	ID             int          `json:"id"`
	Name           string       `json:"name"`
	Height         int          `json:"height"`
	Weight         int          `json:"weight"`
	BaseExperience int          `json:"base_experience"`
	Order          int          `json:"order"`
	IsDefault      bool         `json:"is_default"`
	Types          []TypeSlot   `json:"types"`
	Abilities      []AbilityRef `json:"abilities"`
	Stats          []StatEntry  `json:"stats"`
	Sprites        ImageSet     `json:"sprites"`
	Species        NamedRef     `json:"species"`
}

// TypeTags returns the entity's types in slot order.
func (e CatalogueEntity) TypeTags() []TypeTag {
	tags := make([]TypeTag, 0, len(e.Types))
	for _, ts := range e.Types {
		tags = append(tags, ts.Type)
	}
	return tags
}

// Item returns the list-level view of the entity.
func (e CatalogueEntity) Item() CatalogueItem {
	return CatalogueItem{ID: e.ID, Name: e.Name}
}

// SpeciesMeta is the subset of species metadata the data layer consumes.
type SpeciesMeta struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	EvolutionChainURL string `json:"evolution_chain_url"`
	IsBaby            bool   `json:"is_baby"`
	IsLegendary       bool   `json:"is_legendary"`
	IsMythical        bool   `json:"is_mythical"`
	Genus             string `json:"genus,omitempty"`
	FlavorText        string `json:"flavor_text,omitempty"`
}
