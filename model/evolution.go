package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EvolutionDetail is one raw evolution condition as reported by the remote
// API. Zero values mean "not set".
type EvolutionDetail struct {
	Trigger      NamedRef  `json:"trigger"`
	MinLevel     int       `json:"min_level,omitempty"`
	Item         *NamedRef `json:"item,omitempty"`
	HeldItem     *NamedRef `json:"held_item,omitempty"`
	KnownMove    *NamedRef `json:"known_move,omitempty"`
	Location     *NamedRef `json:"location,omitempty"`
	MinHappiness int       `json:"min_happiness,omitempty"`
	MinAffection int       `json:"min_affection,omitempty"`
	TimeOfDay    string    `json:"time_of_day,omitempty"`
}

// RequirementKind tags the variant of a Requirement.
type RequirementKind string

const (
	RequirementLevel     RequirementKind = "level"
	RequirementItem      RequirementKind = "item"
	RequirementTrade     RequirementKind = "trade"
	RequirementHappiness RequirementKind = "happiness"
	RequirementTimeOfDay RequirementKind = "time_of_day"
	RequirementOther     RequirementKind = "other"
)

// Requirement is a closed variant over evolution trigger kinds. The only
// implementations are the *Requirement types in this file.
type Requirement interface {
	Kind() RequirementKind
	Describe() string
	requirement()
}

// LevelRequirement is reached at a minimum level.
type LevelRequirement struct{ MinLevel int }

// ItemRequirement is reached by using an item.
type ItemRequirement struct{ Item string }

// TradeRequirement is reached by trading.
type TradeRequirement struct{}

// HappinessRequirement is reached at a minimum happiness.
type HappinessRequirement struct{ MinHappiness int }

// TimeOfDayRequirement is reached during a time of day ("day" or "night").
type TimeOfDayRequirement struct{ TimeOfDay string }

// OtherRequirement covers every remaining condition.
type OtherRequirement struct{ Trigger string }

func (LevelRequirement) Kind() RequirementKind     { return RequirementLevel }
func (ItemRequirement) Kind() RequirementKind      { return RequirementItem }
func (TradeRequirement) Kind() RequirementKind     { return RequirementTrade }
func (HappinessRequirement) Kind() RequirementKind { return RequirementHappiness }
func (TimeOfDayRequirement) Kind() RequirementKind { return RequirementTimeOfDay }
func (OtherRequirement) Kind() RequirementKind     { return RequirementOther }

func (r LevelRequirement) Describe() string { return fmt.Sprintf("Level %d", r.MinLevel) }
func (r ItemRequirement) Describe() string {
	return "Use " + strings.ReplaceAll(r.Item, "-", " ")
}
func (TradeRequirement) Describe() string { return "Trade" }
func (r HappinessRequirement) Describe() string {
	return fmt.Sprintf("Happiness %d", r.MinHappiness)
}
func (r TimeOfDayRequirement) Describe() string {
	if r.TimeOfDay == "night" {
		return "During the night"
	}
	return "During the day"
}
func (OtherRequirement) Describe() string { return "Special condition" }

func (LevelRequirement) requirement()     {}
func (ItemRequirement) requirement()      {}
func (TradeRequirement) requirement()     {}
func (HappinessRequirement) requirement() {}
func (TimeOfDayRequirement) requirement() {}
func (OtherRequirement) requirement()     {}

// NewRequirement classifies a raw detail. Precedence is
// level > item > trade > happiness > time of day > other.
func NewRequirement(d EvolutionDetail) Requirement {
	switch {
	case d.MinLevel > 0:
		return LevelRequirement{MinLevel: d.MinLevel}
	case d.Item != nil && d.Item.Name != "":
		return ItemRequirement{Item: d.Item.Name}
	case d.Trigger.Name == "trade":
		return TradeRequirement{}
	case d.MinHappiness > 0:
		return HappinessRequirement{MinHappiness: d.MinHappiness}
	case d.TimeOfDay == "day" || d.TimeOfDay == "night":
		return TimeOfDayRequirement{TimeOfDay: d.TimeOfDay}
	default:
		return OtherRequirement{Trigger: d.Trigger.Name}
	}
}

// RequirementView is the wire form of a Requirement.
type RequirementView struct {
	Kind        RequirementKind `json:"kind"`
	Description string          `json:"description"`
}

// ViewOf renders r for transport.
func ViewOf(r Requirement) RequirementView {
	return RequirementView{Kind: r.Kind(), Description: r.Describe()}
}

// ChainNode is one stage of an evolution tree. Children are owned; chains
// are rebuilt from remote data on every fetch.
type ChainNode struct {
	SpeciesName  string
	SpeciesURL   string
	IsBabyStage  bool
	Requirements []Requirement
	Children     []ChainNode
}

// PrimaryRequirement returns the first requirement of the node, if any.
func (n ChainNode) PrimaryRequirement() (Requirement, bool) {
	if len(n.Requirements) == 0 {
		return nil, false
	}
	return n.Requirements[0], true
}

// MarshalJSON encodes requirements through their views.
func (n ChainNode) MarshalJSON() ([]byte, error) {
	views := make([]RequirementView, 0, len(n.Requirements))
	for _, r := range n.Requirements {
		views = append(views, ViewOf(r))
	}
	children := n.Children
	if children == nil {
		children = []ChainNode{}
	}
	return json.Marshal(struct {
		SpeciesName  string            `json:"species_name"`
		SpeciesURL   string            `json:"species_url,omitempty"`
		IsBabyStage  bool              `json:"is_baby"`
		Requirements []RequirementView `json:"evolution_requirements"`
		Children     []ChainNode       `json:"children"`
	}{n.SpeciesName, n.SpeciesURL, n.IsBabyStage, views, children})
}

// EvolutionChain is the stage tree of one entity family.
type EvolutionChain struct {
	ID   int       `json:"id"`
	Root ChainNode `json:"chain"`
}

// Walk visits every node depth-first, parents before children. Returning
// false from fn stops the walk.
func (c EvolutionChain) Walk(fn func(node ChainNode, depth int) bool) {
	walkNode(c.Root, 0, fn)
}

func walkNode(n ChainNode, depth int, fn func(ChainNode, int) bool) bool {
	if !fn(n, depth) {
		return false
	}
	for _, child := range n.Children {
		if !walkNode(child, depth+1, fn) {
			return false
		}
	}
	return true
}

// EvolutionStage is one flattened node of a chain.
type EvolutionStage struct {
	Depth       int    `json:"depth"`
	SpeciesName string `json:"species_name"`
	IsBabyStage bool   `json:"is_baby"`
	Requirement string `json:"requirement,omitempty"`
}

// Stages flattens the chain depth-first. The root stage carries no
// requirement; every other stage carries the description of its first one.
func (c EvolutionChain) Stages() []EvolutionStage {
	var stages []EvolutionStage
	c.Walk(func(n ChainNode, depth int) bool {
		st := EvolutionStage{Depth: depth, SpeciesName: n.SpeciesName, IsBabyStage: n.IsBabyStage}
		if r, ok := n.PrimaryRequirement(); ok && depth > 0 {
			st.Requirement = r.Describe()
		}
		stages = append(stages, st)
		return true
	})
	return stages
}

// SpeciesNames returns every species in the chain, depth-first.
func (c EvolutionChain) SpeciesNames() []string {
	var names []string
	c.Walk(func(n ChainNode, _ int) bool {
		names = append(names, n.SpeciesName)
		return true
	})
	return names
}
