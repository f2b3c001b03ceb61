package remotetest

// DefaultCreatures returns a small dataset covering single and dual typed
// entities, a baby stage, a branching family and a name that only matches
// by substring.
func DefaultCreatures() []Creature {
	return []Creature{
		{ID: 1, Name: "bulbasaur", Types: []string{"grass", "poison"}, Abilities: []string{"overgrow", "chlorophyll"}, Height: 7, Weight: 69, BaseExperience: 64, ChainID: 1},
		{ID: 2, Name: "ivysaur", Types: []string{"grass", "poison"}, Abilities: []string{"overgrow"}, Height: 10, Weight: 130, BaseExperience: 142, ChainID: 1},
		{ID: 3, Name: "venusaur", Types: []string{"grass", "poison"}, Abilities: []string{"overgrow"}, Height: 20, Weight: 1000, BaseExperience: 236, ChainID: 1},
		{ID: 4, Name: "charmander", Types: []string{"fire"}, Abilities: []string{"blaze"}, Height: 6, Weight: 85, BaseExperience: 62},
		{ID: 7, Name: "squirtle", Types: []string{"water"}, Abilities: []string{"torrent"}, Height: 5, Weight: 90, BaseExperience: 63},
		{ID: 25, Name: "pikachu", Types: []string{"electric"}, Abilities: []string{"static", "lightning-rod"}, Height: 4, Weight: 60, BaseExperience: 112, ChainID: 10},
		{ID: 26, Name: "raichu", Types: []string{"electric"}, Abilities: []string{"static"}, Height: 8, Weight: 300, BaseExperience: 243, ChainID: 10},
		{ID: 133, Name: "eevee", Types: []string{"normal"}, Abilities: []string{"run-away"}, Height: 3, Weight: 65, BaseExperience: 65, ChainID: 67},
		{ID: 134, Name: "vaporeon", Types: []string{"water"}, Abilities: []string{"water-absorb"}, Height: 10, Weight: 290, BaseExperience: 184, ChainID: 67},
		{ID: 135, Name: "jolteon", Types: []string{"electric"}, Abilities: []string{"volt-absorb"}, Height: 8, Weight: 245, BaseExperience: 184, ChainID: 67},
		{ID: 172, Name: "pichu", Types: []string{"electric"}, Abilities: []string{"static"}, Height: 3, Weight: 20, BaseExperience: 41, ChainID: 10, IsBaby: true, NoArtwork: true},
		{ID: 10999, Name: "pikachu-unrelated-demo", Types: []string{"electric", "fairy"}, Abilities: []string{"static"}, Height: 4, Weight: 60, BaseExperience: 1},
	}
}

// DefaultChains returns the evolution chains referenced by DefaultCreatures.
func DefaultChains() map[int]ChainLink {
	return map[int]ChainLink{
		1: {
			Species: "bulbasaur",
			EvolvesTo: []ChainLink{{
				Species: "ivysaur",
				Details: []map[string]any{levelUp(16)},
				EvolvesTo: []ChainLink{{
					Species: "venusaur",
					Details: []map[string]any{levelUp(32)},
				}},
			}},
		},
		10: {
			Species: "pichu",
			IsBaby:  true,
			EvolvesTo: []ChainLink{{
				Species: "pikachu",
				Details: []map[string]any{{
					"min_level":     nil,
					"min_happiness": 220,
					"item":          nil,
					"time_of_day":   "",
					"trigger":       map[string]string{"name": "level-up", "url": ""},
				}},
				EvolvesTo: []ChainLink{{
					Species: "raichu",
					Details: []map[string]any{useItem("thunder-stone")},
				}},
			}},
		},
		67: {
			Species: "eevee",
			EvolvesTo: []ChainLink{
				{Species: "vaporeon", Details: []map[string]any{useItem("water-stone")}},
				{Species: "jolteon", Details: []map[string]any{useItem("thunder-stone")}},
			},
		},
	}
}

func levelUp(level int) map[string]any {
	return map[string]any{
		"min_level":     level,
		"min_happiness": nil,
		"item":          nil,
		"time_of_day":   "",
		"trigger":       map[string]string{"name": "level-up", "url": ""},
	}
}

func useItem(item string) map[string]any {
	return map[string]any{
		"min_level":     nil,
		"min_happiness": nil,
		"item":          map[string]string{"name": item, "url": ""},
		"time_of_day":   "",
		"trigger":       map[string]string{"name": "use-item", "url": ""},
	}
}
