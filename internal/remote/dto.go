package remote

import (
	"strings"

	"github.com/pitabwire/pokerub/model"
)

// Wire shapes of the catalogue API. They are decoded as-is and mapped onto
// model types; nothing else is transformed.

type listResponse struct {
	Count    int              `json:"count"`
	Next     string           `json:"next"`
	Previous string           `json:"previous"`
	Results  []model.NamedRef `json:"results"`
}

type entityResponse struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Height         int    `json:"height"`
	Weight         int    `json:"weight"`
	BaseExperience int    `json:"base_experience"`
	Order          int    `json:"order"`
	IsDefault      bool   `json:"is_default"`
	Types          []struct {
		Slot int            `json:"slot"`
		Type model.NamedRef `json:"type"`
	} `json:"types"`
	Abilities []struct {
		Ability  model.NamedRef `json:"ability"`
		IsHidden bool           `json:"is_hidden"`
		Slot     int            `json:"slot"`
	} `json:"abilities"`
	Stats []struct {
		BaseStat int            `json:"base_stat"`
		Effort   int            `json:"effort"`
		Stat     model.NamedRef `json:"stat"`
	} `json:"stats"`
	Sprites spritesResponse `json:"sprites"`
	Species model.NamedRef  `json:"species"`
}

type spriteVariant struct {
	FrontDefault string `json:"front_default"`
	FrontShiny   string `json:"front_shiny"`
}

type spritesResponse struct {
	FrontDefault string `json:"front_default"`
	FrontShiny   string `json:"front_shiny"`
	BackDefault  string `json:"back_default"`
	BackShiny    string `json:"back_shiny"`
	Other        struct {
		OfficialArtwork spriteVariant `json:"official-artwork"`
		Home            spriteVariant `json:"home"`
		DreamWorld      spriteVariant `json:"dream_world"`
	} `json:"other"`
}

func (r entityResponse) toModel() model.CatalogueEntity {
	e := model.CatalogueEntity{
		ID:             r.ID,
		Name:           r.Name,
		Height:         r.Height,
		Weight:         r.Weight,
		BaseExperience: r.BaseExperience,
		Order:          r.Order,
		IsDefault:      r.IsDefault,
		Types:          make([]model.TypeSlot, 0, len(r.Types)),
		Abilities:      make([]model.AbilityRef, 0, len(r.Abilities)),
		Stats:          make([]model.StatEntry, 0, len(r.Stats)),
		Sprites: model.ImageSet{
			FrontDefault:    r.Sprites.FrontDefault,
			FrontShiny:      r.Sprites.FrontShiny,
			BackDefault:     r.Sprites.BackDefault,
			BackShiny:       r.Sprites.BackShiny,
			OfficialArtwork: r.Sprites.Other.OfficialArtwork.FrontDefault,
			OfficialShiny:   r.Sprites.Other.OfficialArtwork.FrontShiny,
			Home:            r.Sprites.Other.Home.FrontDefault,
			DreamWorld:      r.Sprites.Other.DreamWorld.FrontDefault,
		},
		Species: r.Species,
	}
	for _, t := range r.Types {
		e.Types = append(e.Types, model.TypeSlot{Slot: t.Slot, Type: model.TypeTag(t.Type.Name)})
	}
	for _, a := range r.Abilities {
		e.Abilities = append(e.Abilities, model.AbilityRef{
			Name:     a.Ability.Name,
			URL:      a.Ability.URL,
			IsHidden: a.IsHidden,
			Slot:     a.Slot,
		})
	}
	for _, s := range r.Stats {
		e.Stats = append(e.Stats, model.StatEntry{StatName: s.Stat.Name, BaseValue: s.BaseStat, Effort: s.Effort})
	}
	return e
}

type speciesResponse struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	IsBaby         bool   `json:"is_baby"`
	IsLegendary    bool   `json:"is_legendary"`
	IsMythical     bool   `json:"is_mythical"`
	EvolutionChain struct {
		URL string `json:"url"`
	} `json:"evolution_chain"`
	Genera []struct {
		Genus    string         `json:"genus"`
		Language model.NamedRef `json:"language"`
	} `json:"genera"`
	FlavorTextEntries []struct {
		FlavorText string         `json:"flavor_text"`
		Language   model.NamedRef `json:"language"`
	} `json:"flavor_text_entries"`
}

// flavorTextCleaner normalises the control characters the API embeds in
// flavor text.
var flavorTextCleaner = strings.NewReplacer("\n", " ", "\f", " ", "\u00ad", "")

func (r speciesResponse) toModel() model.SpeciesMeta {
	m := model.SpeciesMeta{
		ID:                r.ID,
		Name:              r.Name,
		EvolutionChainURL: r.EvolutionChain.URL,
		IsBaby:            r.IsBaby,
		IsLegendary:       r.IsLegendary,
		IsMythical:        r.IsMythical,
	}
	for _, g := range r.Genera {
		if g.Language.Name == "en" {
			m.Genus = g.Genus
			break
		}
	}
	for _, f := range r.FlavorTextEntries {
		if f.Language.Name == "en" {
			m.FlavorText = flavorTextCleaner.Replace(f.FlavorText)
			break
		}
	}
	return m
}

type chainLink struct {
	IsBaby           bool                    `json:"is_baby"`
	Species          model.NamedRef          `json:"species"`
	EvolutionDetails []model.EvolutionDetail `json:"evolution_details"`
	EvolvesTo        []chainLink             `json:"evolves_to"`
}

type chainResponse struct {
	ID    int       `json:"id"`
	Chain chainLink `json:"chain"`
}

func (l chainLink) toModel() model.ChainNode {
	n := model.ChainNode{
		SpeciesName:  l.Species.Name,
		SpeciesURL:   l.Species.URL,
		IsBabyStage:  l.IsBaby,
		Requirements: make([]model.Requirement, 0, len(l.EvolutionDetails)),
		Children:     make([]model.ChainNode, 0, len(l.EvolvesTo)),
	}
	for _, d := range l.EvolutionDetails {
		n.Requirements = append(n.Requirements, model.NewRequirement(d))
	}
	for _, child := range l.EvolvesTo {
		n.Children = append(n.Children, child.toModel())
	}
	return n
}

func (r chainResponse) toModel() model.EvolutionChain {
	return model.EvolutionChain{ID: r.ID, Root: r.Chain.toModel()}
}
