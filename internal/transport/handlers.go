package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/pokerub/internal/config"
	"github.com/pitabwire/pokerub/internal/observability"
	"github.com/pitabwire/pokerub/internal/provider"
	"github.com/pitabwire/pokerub/internal/query"
	"github.com/pitabwire/pokerub/internal/search"
	"github.com/pitabwire/pokerub/model"
)

const (
	maxPageLimit   = 200
	maxBodyBytes   = 1 << 16
	stageFetchSize = 4
)

func handleTypes(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"types": model.TypeTable()})
}

func handleCataloguePage(catalogue *provider.CatalogueProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", query.DefaultPageSize)
		if err != nil || limit < 1 || limit > maxPageLimit {
			WriteBadRequest(w, r, "limit must be between 1 and 200")
			return
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil || offset < 0 {
			WriteBadRequest(w, r, "offset must be a non-negative integer")
			return
		}
		writeResult(w, r, catalogue.Page(r.Context(), limit, offset))
	}
}

func handleFeed(catalogue *provider.CatalogueProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, newPageResponse(catalogue.Feed().EnsureFirstPage(r.Context())))
	}
}

func handleFeedNext(catalogue *provider.CatalogueProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, newPageResponse(catalogue.Feed().FetchNextPage(r.Context())))
	}
}

// handleDetail serves an entity by numeric id or by name.
func handleDetail(catalogue *provider.CatalogueProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := strings.TrimSpace(chi.URLParam(r, "ref"))
		if id, err := strconv.Atoi(ref); err == nil {
			if id < 0 {
				WriteBadRequest(w, r, "id must be non-negative")
				return
			}
			writeResult(w, r, catalogue.Detail(r.Context(), id))
			return
		}
		if ref == "" {
			WriteBadRequest(w, r, "name is required")
			return
		}
		writeResult(w, r, catalogue.ByName(r.Context(), ref))
	}
}

func handleIDByName(catalogue *provider.CatalogueProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(chi.URLParam(r, "ref"))
		if name == "" {
			WriteBadRequest(w, r, "name is required")
			return
		}
		res := catalogue.IDByName(r.Context(), name)
		if res.Error != nil && !res.HasData() {
			WriteError(w, r, res.Error)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"name": strings.ToLower(name), "id": res.Data})
	}
}

func handleSpecies(catalogue *provider.CatalogueProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "ref")
		if !ok {
			return
		}
		writeResult(w, r, catalogue.Species(r.Context(), id))
	}
}

// evolutionResponse carries the chain tree and its depth-first stages. With
// ?expand=entities each stage also carries its detail entity.
type evolutionResponse struct {
	Chain     model.EvolutionChain   `json:"chain"`
	Stages    []model.EvolutionStage `json:"stages"`
	Entities  map[string]stageEntity `json:"entities,omitempty"`
	IsStale   bool                   `json:"isStale"`
	UpdatedAt time.Time              `json:"updatedAt,omitzero"`
}

type stageEntity struct {
	ID       int             `json:"id"`
	ImageURL string          `json:"imageUrl"`
	Types    []model.TypeTag `json:"types"`
}

func handleEvolution(evolution *provider.EvolutionProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "ref")
		if !ok {
			return
		}
		res := evolution.Chain(r.Context(), id)
		if res.Error != nil && !res.HasData() {
			WriteError(w, r, res.Error)
			return
		}

		resp := evolutionResponse{
			Chain:     res.Data,
			Stages:    res.Data.Stages(),
			IsStale:   res.IsStale,
			UpdatedAt: res.UpdatedAt,
		}
		if resp.Stages == nil {
			resp.Stages = []model.EvolutionStage{}
		}
		if r.URL.Query().Get("expand") == "entities" {
			resp.Entities = stageEntities(r, evolution, res.Data.SpeciesNames())
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// stageEntities fetches the detail of every stage. Stages whose detail
// cannot be fetched are left out.
func stageEntities(r *http.Request, evolution *provider.EvolutionProvider, names []string) map[string]stageEntity {
	out := make(map[string]stageEntity, len(names))
	results := make([]model.QueryResult[model.CatalogueEntity], len(names))

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(stageFetchSize)
	for i, name := range names {
		g.Go(func() error {
			results[i] = evolution.StageEntity(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	for i, res := range results {
		if res.Error != nil && !res.HasData() {
			continue
		}
		out[names[i]] = stageEntity{
			ID:       res.Data.ID,
			ImageURL: res.Data.Sprites.PrimaryImage(),
			Types:    res.Data.TypeTags(),
		}
	}
	return out
}

// searchResponse is the resolved display set of one query.
type searchResponse struct {
	Query       string                `json:"query"`
	Source      search.Source         `json:"source"`
	Items       []model.CatalogueItem `json:"items"`
	Types       []model.TypeTag       `json:"types"`
	Unresolved  int                   `json:"unresolved"`
	SearchError *model.ErrorEnvelope  `json:"searchError,omitempty"`
}

func handleSearch(catalogue *provider.CatalogueProvider, backend search.Backend,
	cfg config.SearchConfig, metrics *observability.Metrics,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		filter, err := parseTypes(r.URL.Query().Get("types"))
		if err != nil {
			WriteBadRequest(w, r, err.Error())
			return
		}

		// The loaded list backs local matches; make sure it holds a page.
		if catalogue != nil {
			catalogue.Feed().EnsureFirstPage(r.Context())
		}

		res := search.Run(r.Context(), backend, q, filter, cfg, metrics)
		resp := searchResponse{
			Query:      q,
			Source:     res.Source,
			Items:      res.Items,
			Types:      filter.Types(),
			Unresolved: len(res.Pending),
		}
		if res.SearchErr != nil {
			resp.SearchError = model.EnvelopeFor(res.SearchErr)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func handleListFavorites(favorites *provider.FavoritesProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, r, favorites.List(r.Context()))
	}
}

func handleIsFavorite(favorites *provider.FavoritesProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		res := favorites.IsFavorite(r.Context(), id)
		if res.Error != nil && !res.HasData() {
			WriteError(w, r, res.Error)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"id": id, "favorite": res.Data})
	}
}

type addFavoriteRequest struct {
	ID *int `json:"id"`
}

func handleAddFavorite(favorites *provider.FavoritesProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addFavoriteRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				WriteBadRequest(w, r, "request body is required")
				return
			}
			WriteBadRequest(w, r, "invalid request body")
			return
		}
		if req.ID == nil || *req.ID < 1 {
			WriteBadRequest(w, r, "id must be a positive integer")
			return
		}

		fav, err := favorites.AddByID(r.Context(), *req.ID)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusCreated, fav)
	}
}

func handleRemoveFavorite(favorites *provider.FavoritesProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := favorites.Remove(r.Context(), id); err != nil {
			WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleClearFavorites(favorites *provider.FavoritesProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := favorites.Clear(r.Context()); err != nil {
			WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// queryInt extracts an integer query param with a default.
func queryInt(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// pathID parses a non-negative numeric path parameter, writing a 400 when
// it is not one.
func pathID(w http.ResponseWriter, r *http.Request, param string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, param))
	if err != nil || id < 0 {
		WriteBadRequest(w, r, param+" must be a non-negative integer")
		return 0, false
	}
	return id, true
}

// parseTypes parses a comma-separated list of type tags.
func parseTypes(raw string) (model.FilterOptions, error) {
	var f model.FilterOptions
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		tag, ok := model.ParseTypeTag(part)
		if !ok {
			return model.FilterOptions{}, errors.New("unknown type " + strconv.Quote(strings.TrimSpace(part)))
		}
		f.Add(tag)
	}
	return f, nil
}
