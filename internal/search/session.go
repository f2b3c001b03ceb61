package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/pokerub/internal/config"
	"github.com/pitabwire/pokerub/internal/observability"
	"github.com/pitabwire/pokerub/model"
)

// Phase is the state of a search session.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDebouncing  Phase = "debouncing"
	PhaseSearching   Phase = "searching"
	PhaseLocalFilter Phase = "local_filter"
	PhaseSettled     Phase = "settled"
)

// View is a snapshot of a session.
type View struct {
	Input         string                `json:"input"`
	Query         string                `json:"query"`
	Phase         Phase                 `json:"phase"`
	Source        Source                `json:"source"`
	Items         []model.CatalogueItem `json:"items"`
	SearchErr     error                 `json:"-"`
	PendingTypes  int                   `json:"pendingTypes"`
	ActiveFilters []model.TypeTag       `json:"activeFilters"`
}

// IsSearching reports whether a remote search is in flight.
func (v View) IsSearching() bool { return v.Phase == PhaseSearching }

// Session turns raw input and filter toggles into displayed views.
//
// Input is committed once it has been idle for the debounce interval. Each
// commit bumps a generation; a remote search that resolves under an older
// generation is dropped. While a search is in flight the view shows the local
// match of the committed query.
//
// With a type filter active, candidates of unknown type are fetched in the
// background and the view is re-emitted as they arrive. A candidate whose
// fetch failed stays hidden until the next input or filter change.
type Session struct {
	backend Backend
	cfg     config.SearchConfig
	logger  *zap.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	raw        string
	query      string
	phase      Phase
	generation uint64
	inputSeq   uint64
	timer      *time.Timer
	remote     []model.CatalogueEntity
	remoteErr  error
	filter     model.FilterOptions
	types      map[int][]model.TypeTag
	failed     map[int]bool
	fetching   map[int]bool
	view       View
	onChange   func(View)
	committed  time.Time
	wg         sync.WaitGroup
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithSessionMetrics records search outcomes on m.
func WithSessionMetrics(m *observability.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l.Named("search")
		}
	}
}

// NewSession creates an idle session showing the loaded list. Background
// work is bound to ctx and stops when ctx ends or Close is called.
func NewSession(ctx context.Context, backend Backend, cfg config.SearchConfig, opts ...SessionOption) *Session {
	cfg = withSearchDefaults(cfg)
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		backend:  backend,
		cfg:      cfg,
		logger:   zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
		phase:    PhaseIdle,
		types:    make(map[int][]model.TypeTag),
		failed:   make(map[int]bool),
		fetching: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mu.Lock()
	s.recomputeLocked()
	s.mu.Unlock()
	return s
}

func withSearchDefaults(cfg config.SearchConfig) config.SearchConfig {
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	if cfg.MinRemoteLength <= 0 {
		cfg.MinRemoteLength = 3
	}
	if cfg.DetailConcurrency <= 0 {
		cfg.DetailConcurrency = 8
	}
	return cfg
}

// OnChange registers fn to receive every new view. fn runs outside the
// session lock but may be called from any goroutine.
func (s *Session) OnChange(fn func(View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// View returns the current view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetInput buffers raw input and restarts the debounce timer.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.raw = text
	s.phase = PhaseDebouncing
	s.inputSeq++
	if s.timer != nil {
		s.timer.Stop()
	}
	seq := s.inputSeq
	s.timer = time.AfterFunc(s.cfg.Debounce, func() { s.commitIfCurrent(seq) })
	view := s.recomputeLocked()
	s.mu.Unlock()
	s.emit(view)
}

// Flush commits the buffered input without waiting for the debounce.
func (s *Session) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	view := s.commitLocked()
	s.mu.Unlock()
	s.emit(view)
}

// ToggleType flips one type filter.
func (s *Session) ToggleType(t model.TypeTag) {
	s.mu.Lock()
	s.filter.Toggle(t)
	clear(s.failed)
	view := s.recomputeLocked()
	s.mu.Unlock()
	s.emit(view)
}

// ClearFilters removes every type filter.
func (s *Session) ClearFilters() {
	s.mu.Lock()
	s.filter.Clear()
	clear(s.failed)
	view := s.recomputeLocked()
	s.mu.Unlock()
	s.emit(view)
}

// ActiveFilterCount returns the number of selected types.
func (s *Session) ActiveFilterCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter.Len()
}

// HasActiveFilters reports whether any type is selected.
func (s *Session) HasActiveFilters() bool { return s.ActiveFilterCount() > 0 }

// Refresh recomputes the view against the current loaded list, e.g. after
// another page was fetched.
func (s *Session) Refresh() {
	s.mu.Lock()
	view := s.recomputeLocked()
	s.mu.Unlock()
	s.emit(view)
}

// Close stops the debounce timer, abandons background work and waits for
// it to return.
func (s *Session) Close() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until background searches and detail fetches have returned.
func (s *Session) Wait() { s.wg.Wait() }

func (s *Session) commitIfCurrent(seq uint64) {
	s.mu.Lock()
	if seq != s.inputSeq || s.phase != PhaseDebouncing || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	view := s.commitLocked()
	s.mu.Unlock()
	s.emit(view)
}

func (s *Session) commitLocked() View {
	s.generation++
	s.query = strings.TrimSpace(s.raw)
	s.remote = nil
	s.remoteErr = nil
	s.committed = time.Now()
	clear(s.failed)

	switch Decide(s.query, s.cfg.MinRemoteLength) {
	case DecideRemote:
		s.phase = PhaseSearching
		s.wg.Add(1)
		go s.search(s.generation, s.query)
		return s.recomputeLocked()
	case DecideLocal:
		s.phase = PhaseLocalFilter
	default:
		s.phase = PhaseSettled
	}
	view := s.recomputeLocked()
	s.metrics.RecordSearch(time.Since(s.committed), string(view.Source))
	return view
}

func (s *Session) search(gen uint64, q string) {
	defer s.wg.Done()
	results, err := s.backend.Search(s.ctx, q)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded search result", zap.String("query", q))
		return
	}
	s.remote = results
	s.remoteErr = err
	s.phase = PhaseSettled
	view := s.recomputeLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("search failed, showing local matches", zap.String("query", q), zap.Error(err))
	}
	s.metrics.RecordSearch(time.Since(s.committed), string(view.Source))
	s.emit(view)
}

// recomputeLocked rebuilds the view and schedules type fetches for hidden
// candidates.
func (s *Session) recomputeLocked() View {
	in := Input{
		Query:           s.query,
		MinRemoteLength: s.cfg.MinRemoteLength,
		Loaded:          s.backend.Loaded(),
		Remote:          s.remote,
		RemoteErr:       s.remoteErr,
		Filter:          s.filter,
		Types:           s.lookupLocked,
	}
	res := Resolve(in)

	var pending []int
	for _, id := range res.Pending {
		if !s.fetching[id] {
			pending = append(pending, id)
		}
	}
	if len(pending) > 0 {
		s.fetchTypesLocked(pending)
	}

	s.view = View{
		Input:         s.raw,
		Query:         s.query,
		Phase:         s.phase,
		Source:        res.Source,
		Items:         res.Items,
		SearchErr:     res.SearchErr,
		PendingTypes:  len(res.Pending),
		ActiveFilters: s.filter.Types(),
	}
	return s.view
}

// lookupLocked reports failed fetches as known with no types, which hides
// them without scheduling another fetch.
func (s *Session) lookupLocked(id int) ([]model.TypeTag, bool) {
	if t, ok := s.types[id]; ok {
		return t, true
	}
	if s.failed[id] {
		return nil, true
	}
	return nil, false
}

func (s *Session) fetchTypesLocked(ids []int) {
	for _, id := range ids {
		s.fetching[id] = true
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		g := new(errgroup.Group)
		g.SetLimit(s.cfg.DetailConcurrency)
		for _, id := range ids {
			g.Go(func() error {
				s.fetchType(id)
				return nil
			})
		}
		_ = g.Wait()

		if s.ctx.Err() != nil {
			return
		}
		s.mu.Lock()
		view := s.recomputeLocked()
		s.mu.Unlock()
		s.emit(view)
	}()
}

func (s *Session) fetchType(id int) {
	e, err := s.backend.Detail(s.ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fetching, id)
	if err != nil {
		s.failed[id] = true
		s.metrics.RecordDetailFetch("error")
		s.logger.Debug("type lookup failed", zap.Int("id", id), zap.Error(err))
		return
	}
	s.types[id] = e.TypeTags()
	s.metrics.RecordDetailFetch("ok")
}

func (s *Session) emit(v View) {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}
