// Package search is the search-and-filter engine. Resolve is the pure
// decision of which items to display for a committed query, a remote search
// outcome and a type filter; Session drives it from raw keystrokes with a
// debounce, and Run drives it once for a single request.
//
// Session is the entry point for an interactive client embedding the data
// layer: it owns the Idle, Debouncing, Searching or LocalFilter, and Settled
// phases and reports each View through OnChange. The HTTP server is
// stateless per request, so /v1/search goes through Run; a client keeping
// its own input state builds one Session over NewProviderBackend instead.
package search

import (
	"strings"
	"unicode/utf8"

	"github.com/pitabwire/pokerub/model"
)

// Source names where the displayed set came from.
type Source string

const (
	// SourceAll is the full loaded list, shown for an empty query.
	SourceAll Source = "all"
	// SourceLocal is a substring match over the loaded list.
	SourceLocal Source = "local"
	// SourceRemote is the remote search result.
	SourceRemote Source = "remote"
)

// Decision is what a committed query requires before it can be resolved.
type Decision int

const (
	// DecideAll shows the loaded list.
	DecideAll Decision = iota
	// DecideLocal filters the loaded list without a remote search.
	DecideLocal
	// DecideRemote issues a remote search first.
	DecideRemote
)

// Decide classifies a committed query by its length in characters.
func Decide(query string, minRemoteLength int) Decision {
	n := utf8.RuneCountInString(strings.TrimSpace(query))
	switch {
	case n == 0:
		return DecideAll
	case n < minRemoteLength:
		return DecideLocal
	default:
		return DecideRemote
	}
}

// TypeLookup returns the detail-level types of an item, if known.
type TypeLookup func(id int) (types []model.TypeTag, known bool)

// Input is everything Resolve needs.
type Input struct {
	Query           string
	MinRemoteLength int
	Loaded          []model.CatalogueItem
	// Remote is the result of the remote search for Query, when one was
	// issued and completed.
	Remote    []model.CatalogueEntity
	RemoteErr error
	Filter    model.FilterOptions
	Types     TypeLookup
}

// Result is the displayed set.
type Result struct {
	Items  []model.CatalogueItem
	Source Source
	// SearchErr is the remote search failure that forced a local fallback.
	SearchErr error
	// Pending lists candidates hidden by the type filter until their types
	// are known.
	Pending []int
}

// Resolve computes the displayed set. Candidates come from the loaded list,
// a local substring match, or the remote result; an active type filter then
// keeps only candidates whose known types intersect it.
func Resolve(in Input) Result {
	var (
		res        Result
		candidates []model.CatalogueItem
		known      = map[int][]model.TypeTag{}
	)

	switch Decide(in.Query, in.MinRemoteLength) {
	case DecideAll:
		res.Source = SourceAll
		candidates = in.Loaded
	case DecideLocal:
		res.Source = SourceLocal
		candidates = MatchLocal(in.Loaded, in.Query)
	case DecideRemote:
		if len(in.Remote) > 0 {
			res.Source = SourceRemote
			for _, e := range in.Remote {
				candidates = append(candidates, e.Item())
				known[e.ID] = e.TypeTags()
			}
		} else {
			res.Source = SourceLocal
			res.SearchErr = in.RemoteErr
			candidates = MatchLocal(in.Loaded, in.Query)
		}
	}

	if in.Filter.Len() == 0 {
		res.Items = append([]model.CatalogueItem{}, candidates...)
		return res
	}

	res.Items = []model.CatalogueItem{}
	for _, item := range candidates {
		types, ok := known[item.ID]
		if !ok && in.Types != nil {
			types, ok = in.Types(item.ID)
		}
		if !ok {
			res.Pending = append(res.Pending, item.ID)
			continue
		}
		if in.Filter.Matches(types) {
			res.Items = append(res.Items, item)
		}
	}
	return res
}

// MatchLocal returns the items whose name contains query, ignoring case.
func MatchLocal(items []model.CatalogueItem, query string) []model.CatalogueItem {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []model.CatalogueItem{}
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), q) {
			out = append(out, item)
		}
	}
	return out
}
