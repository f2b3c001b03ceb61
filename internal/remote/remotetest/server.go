// Package remotetest provides an in-process fake of the creature catalogue
// API for tests. It serves a configurable dataset, records every request and
// can be told to fail or stall specific paths.
package remotetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// APIPrefix is the path under which the fake serves the API.
const APIPrefix = "/api/v2"

// Creature is one fixture entity.
type Creature struct {
	ID             int
	Name           string
	Types          []string
	Abilities      []string
	Height         int
	Weight         int
	BaseExperience int
	ChainID        int
	IsBaby         bool
	NoArtwork      bool
}

// ChainLink is one fixture evolution chain node. Details holds raw
// evolution_details documents.
type ChainLink struct {
	Species   string
	IsBaby    bool
	Details   []map[string]any
	EvolvesTo []ChainLink
}

// Server is a fake catalogue API backed by httptest.Server.
type Server struct {
	server *httptest.Server

	mu        sync.Mutex
	creatures map[int]Creature
	byName    map[string]int
	listOrder []int
	count     int
	chains    map[int]ChainLink
	failures  map[string][]int
	delays    map[string]time.Duration
	gates     map[string]chan struct{}
	requests  map[string]int
	total     int
}

// NewServer starts an empty fake and closes it when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		creatures: make(map[int]Creature),
		byName:    make(map[string]int),
		count:     -1,
		chains:    make(map[int]ChainLink),
		failures:  make(map[string][]int),
		delays:    make(map[string]time.Duration),
		gates:     make(map[string]chan struct{}),
		requests:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+APIPrefix+"/pokemon/{$}", s.handleList)
	mux.HandleFunc("GET "+APIPrefix+"/pokemon/{ref}/{$}", s.handleEntity)
	mux.HandleFunc("GET "+APIPrefix+"/pokemon-species/{id}/{$}", s.handleSpecies)
	mux.HandleFunc("GET "+APIPrefix+"/evolution-chain/{id}/{$}", s.handleChain)

	s.server = httptest.NewServer(s.intercept(mux))
	t.Cleanup(s.server.Close)
	return s
}

// NewDefaultServer starts a fake preloaded with DefaultCreatures and
// DefaultChains.
func NewDefaultServer(t testing.TB) *Server {
	t.Helper()
	s := NewServer(t)
	for _, c := range DefaultCreatures() {
		s.AddCreature(c)
	}
	for id, link := range DefaultChains() {
		s.AddChain(id, link)
	}
	return s
}

// URL returns the root URL of the fake server.
func (s *Server) URL() string { return s.server.URL }

// BaseURL returns the API base URL to configure clients with.
func (s *Server) BaseURL() string { return s.server.URL + APIPrefix }

// Client returns an HTTP client wired to the fake server.
func (s *Server) Client() *http.Client { return s.server.Client() }

// AddCreature registers c. List order follows registration order.
func (s *Server) AddCreature(c Creature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.creatures[c.ID]; !exists {
		s.listOrder = append(s.listOrder, c.ID)
	}
	s.creatures[c.ID] = c
	s.byName[strings.ToLower(c.Name)] = c.ID
}

// AddChain registers the evolution chain with the given id.
func (s *Server) AddChain(id int, root ChainLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chains[id] = root
}

// SetCount overrides the total count reported by the list endpoint.
func (s *Server) SetCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count = n
}

// FailNext makes the next len(statuses) requests to path respond with the
// given statuses, in order. path is relative to APIPrefix, e.g. "/pokemon/25/".
func (s *Server) FailNext(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[APIPrefix+path] = append(s.failures[APIPrefix+path], statuses...)
}

// Delay stalls every request to path by d.
func (s *Server) Delay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[APIPrefix+path] = d
}

// Gate blocks requests to path until the returned release func is called.
func (s *Server) Gate(path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[APIPrefix+path] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, APIPrefix+path)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Requests returns how many requests path has received, including failed
// ones. path is relative to APIPrefix.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[APIPrefix+path]
}

// TotalRequests returns the number of requests received on any path.
func (s *Server) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		s.mu.Lock()
		s.requests[path]++
		s.total++
		delay := s.delays[path]
		gate := s.gates[path]
		var failStatus int
		if queue := s.failures[path]; len(queue) > 0 {
			failStatus = queue[0]
			s.failures[path] = queue[1:]
		}
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if failStatus != 0 {
			writeJSON(w, failStatus, map[string]string{"detail": http.StatusText(failStatus)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	order := slices.Clone(s.listOrder)
	count := s.count
	names := make(map[int]string, len(order))
	for _, id := range order {
		names[id] = s.creatures[id].Name
	}
	s.mu.Unlock()

	if count < 0 {
		count = len(order)
	}
	results := []map[string]string{}
	for i := offset; i < offset+limit && i < len(order); i++ {
		id := order[i]
		results = append(results, map[string]string{
			"name": names[id],
			"url":  s.entityURL(id),
		})
	}

	var next any
	if offset+limit < count {
		next = fmt.Sprintf("%s/pokemon/?offset=%d&limit=%d", s.BaseURL(), offset+limit, limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    count,
		"next":     next,
		"previous": nil,
		"results":  results,
	})
}

func (s *Server) lookup(ref string) (Creature, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, err := strconv.Atoi(ref); err == nil {
		c, ok := s.creatures[id]
		return c, ok
	}
	id, ok := s.byName[ref]
	if !ok {
		return Creature{}, false
	}
	return s.creatures[id], true
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(r.PathValue("ref"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, s.entityDocument(c))
}

func (s *Server) handleSpecies(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	doc := map[string]any{
		"id":           c.ID,
		"name":         c.Name,
		"is_baby":      c.IsBaby,
		"is_legendary": false,
		"is_mythical":  false,
		"genera": []map[string]any{
			{"genus": "Maus-Pokémon", "language": map[string]string{"name": "de"}},
			{"genus": "Fixture Pokémon", "language": map[string]string{"name": "en"}},
		},
		"flavor_text_entries": []map[string]any{
			{"flavor_text": "A fixture\ncreature.", "language": map[string]string{"name": "en"}},
		},
	}
	if c.ChainID != 0 {
		doc["evolution_chain"] = map[string]string{"url": fmt.Sprintf("%s/evolution-chain/%d/", s.BaseURL(), c.ChainID)}
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	s.mu.Lock()
	root, ok := s.chains[id]
	s.mu.Unlock()
	if err != nil || !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                id,
		"baby_trigger_item": nil,
		"chain":             s.chainDocument(root),
	})
}

func (s *Server) chainDocument(l ChainLink) map[string]any {
	details := l.Details
	if details == nil {
		details = []map[string]any{}
	}
	children := make([]map[string]any, 0, len(l.EvolvesTo))
	for _, child := range l.EvolvesTo {
		children = append(children, s.chainDocument(child))
	}
	speciesURL := ""
	if c, ok := s.lookup(l.Species); ok {
		speciesURL = fmt.Sprintf("%s/pokemon-species/%d/", s.BaseURL(), c.ID)
	}
	return map[string]any{
		"is_baby":           l.IsBaby,
		"species":           map[string]string{"name": l.Species, "url": speciesURL},
		"evolution_details": details,
		"evolves_to":        children,
	}
}

func (s *Server) entityURL(id int) string {
	return fmt.Sprintf("%s/pokemon/%d/", s.BaseURL(), id)
}

func (s *Server) entityDocument(c Creature) map[string]any {
	types := make([]map[string]any, 0, len(c.Types))
	for i, t := range c.Types {
		types = append(types, map[string]any{
			"slot": i + 1,
			"type": map[string]string{"name": t, "url": s.BaseURL() + "/type/" + t + "/"},
		})
	}
	abilities := make([]map[string]any, 0, len(c.Abilities))
	for i, a := range c.Abilities {
		abilities = append(abilities, map[string]any{
			"ability":   map[string]string{"name": a, "url": s.BaseURL() + "/ability/" + a + "/"},
			"is_hidden": i > 0,
			"slot":      i + 1,
		})
	}
	stats := []map[string]any{}
	for i, name := range []string{"hp", "attack", "defense", "special-attack", "special-defense", "speed"} {
		stats = append(stats, map[string]any{
			"base_stat": 40 + 10*i,
			"effort":    0,
			"stat":      map[string]string{"name": name, "url": ""},
		})
	}
	var artwork any
	if !c.NoArtwork {
		artwork = fmt.Sprintf("https://img.example.test/artwork/%d.png", c.ID)
	}
	return map[string]any{
		"id":              c.ID,
		"name":            c.Name,
		"height":          c.Height,
		"weight":          c.Weight,
		"base_experience": c.BaseExperience,
		"order":           c.ID,
		"is_default":      true,
		"types":           types,
		"abilities":       abilities,
		"stats":           stats,
		"sprites": map[string]any{
			"front_default": fmt.Sprintf("https://img.example.test/front/%d.png", c.ID),
			"front_shiny":   nil,
			"back_default":  nil,
			"back_shiny":    nil,
			"other": map[string]any{
				"official-artwork": map[string]any{"front_default": artwork, "front_shiny": nil},
			},
		},
		"species": map[string]string{
			"name": c.Name,
			"url":  fmt.Sprintf("%s/pokemon-species/%d/", s.BaseURL(), c.ID),
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
