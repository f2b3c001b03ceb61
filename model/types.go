package model

import "strings"

// TypeTag is a category label of a catalogue entity. The zero value is the
// empty tag; unknown labels received from the remote API are preserved
// verbatim so that filtering still works against them.
type TypeTag string

// The known type tags.
const (
	TypeNormal   TypeTag = "normal"
	TypeFire     TypeTag = "fire"
	TypeWater    TypeTag = "water"
	TypeElectric TypeTag = "electric"
	TypeGrass    TypeTag = "grass"
	TypeIce      TypeTag = "ice"
	TypeFighting TypeTag = "fighting"
	TypePoison   TypeTag = "poison"
	TypeGround   TypeTag = "ground"
	TypeFlying   TypeTag = "flying"
	TypePsychic  TypeTag = "psychic"
	TypeBug      TypeTag = "bug"
	TypeRock     TypeTag = "rock"
	TypeGhost    TypeTag = "ghost"
	TypeDragon   TypeTag = "dragon"
	TypeDark     TypeTag = "dark"
	TypeSteel    TypeTag = "steel"
	TypeFairy    TypeTag = "fairy"
)

// fallbackTypeColor is used for tags outside the known table.
const fallbackTypeColor = "#68A090"

type typeInfo struct {
	translation string
	color       string
}

var typeTable = map[TypeTag]typeInfo{
	TypeNormal:   {"Normal", "#A8A878"},
	TypeFire:     {"Fogo", "#F08030"},
	TypeWater:    {"Água", "#6890F0"},
	TypeElectric: {"Elétrico", "#F8D030"},
	TypeGrass:    {"Planta", "#78C850"},
	TypeIce:      {"Gelo", "#98D8D8"},
	TypeFighting: {"Lutador", "#C03028"},
	TypePoison:   {"Veneno", "#A040A0"},
	TypeGround:   {"Terra", "#E0C068"},
	TypeFlying:   {"Voador", "#A890F0"},
	TypePsychic:  {"Psíquico", "#F85888"},
	TypeBug:      {"Inseto", "#A8B820"},
	TypeRock:     {"Pedra", "#B8A038"},
	TypeGhost:    {"Fantasma", "#705898"},
	TypeDragon:   {"Dragão", "#7038F8"},
	TypeDark:     {"Sombrio", "#705848"},
	TypeSteel:    {"Aço", "#B8B8D0"},
	TypeFairy:    {"Fada", "#EE99AC"},
}

var allTypeTags = []TypeTag{
	TypeNormal, TypeFire, TypeWater, TypeElectric, TypeGrass, TypeIce,
	TypeFighting, TypePoison, TypeGround, TypeFlying, TypePsychic, TypeBug,
	TypeRock, TypeGhost, TypeDragon, TypeDark, TypeSteel, TypeFairy,
}

// AllTypeTags returns the 18 known tags in display order.
func AllTypeTags() []TypeTag {
	out := make([]TypeTag, len(allTypeTags))
	copy(out, allTypeTags)
	return out
}

// ParseTypeTag normalises s and reports whether it names a known tag.
func ParseTypeTag(s string) (TypeTag, bool) {
	t := TypeTag(strings.ToLower(strings.TrimSpace(s)))
	_, ok := typeTable[t]
	return t, ok
}

// Known reports whether t is one of the 18 known tags.
func (t TypeTag) Known() bool {
	_, ok := typeTable[t]
	return ok
}

// Translation returns the display label, or the raw tag when unknown.
func (t TypeTag) Translation() string {
	if info, ok := typeTable[TypeTag(strings.ToLower(string(t)))]; ok {
		return info.translation
	}
	return string(t)
}

// Color returns the presentation colour as a hex string.
func (t TypeTag) Color() string {
	if info, ok := typeTable[TypeTag(strings.ToLower(string(t)))]; ok {
		return info.color
	}
	return fallbackTypeColor
}

// TypeDescriptor is the wire form of one row of the type lookup table.
type TypeDescriptor struct {
	Tag         TypeTag `json:"tag"`
	Translation string  `json:"translation"`
	Color       string  `json:"color"`
}

// TypeTable returns the full lookup table in display order.
func TypeTable() []TypeDescriptor {
	out := make([]TypeDescriptor, 0, len(allTypeTags))
	for _, t := range allTypeTags {
		out = append(out, TypeDescriptor{Tag: t, Translation: t.Translation(), Color: t.Color()})
	}
	return out
}

var statDisplayNames = map[string]string{
	"hp":              "HP",
	"attack":          "ATK",
	"defense":         "DEF",
	"special-attack":  "SP. ATK",
	"special-defense": "SP. DEF",
	"speed":           "SPD",
}

// StatDisplayName returns the short label for a stat, or the name itself.
func StatDisplayName(statName string) string {
	if n, ok := statDisplayNames[statName]; ok {
		return n
	}
	return statName
}

// StatColor returns the colour band for a base stat value.
func StatColor(value int) string {
	switch {
	case value >= 120:
		return "#10B981"
	case value >= 90:
		return "#3B82F6"
	case value >= 60:
		return "#F59E0B"
	case value >= 30:
		return "#EF4444"
	default:
		return "#9CA3AF"
	}
}
