package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/pokerub/internal/config"
	"github.com/pitabwire/pokerub/internal/observability"
	"github.com/pitabwire/pokerub/model"
)

// fakeBackend serves a fixed loaded list. Searches and details are looked up
// in maps; a gate, when set, holds searches for that query until released.
type fakeBackend struct {
	mu        sync.Mutex
	loaded    []model.CatalogueItem
	entities  map[string]model.CatalogueEntity
	details   map[int]model.CatalogueEntity
	searchErr error
	gates     map[string]chan struct{}

	searches      atomic.Int32
	detailFetches atomic.Int32
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{
		entities: map[string]model.CatalogueEntity{},
		details:  map[int]model.CatalogueEntity{},
		gates:    map[string]chan struct{}{},
	}
	add := func(id int, name string, types ...model.TypeTag) {
		e := model.CatalogueEntity{ID: id, Name: name}
		for i, t := range types {
			e.Types = append(e.Types, model.TypeSlot{Slot: i + 1, Type: t})
		}
		b.loaded = append(b.loaded, e.Item())
		b.entities[name] = e
		b.details[id] = e
	}
	add(1, "bulbasaur", model.TypeGrass, model.TypePoison)
	add(4, "charmander", model.TypeFire)
	add(7, "squirtle", model.TypeWater)
	add(25, "pikachu", model.TypeElectric)
	add(10999, "pikachu-unrelated-demo", model.TypeElectric, model.TypeFairy)
	return b
}

func (b *fakeBackend) Loaded() []model.CatalogueItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.CatalogueItem(nil), b.loaded...)
}

func (b *fakeBackend) Search(ctx context.Context, q string) ([]model.CatalogueEntity, error) {
	b.searches.Add(1)
	b.mu.Lock()
	gate := b.gates[q]
	err := b.searchErr
	e, ok := b.entities[q]
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return []model.CatalogueEntity{}, nil
	}
	return []model.CatalogueEntity{e}, nil
}

func (b *fakeBackend) Detail(_ context.Context, id int) (model.CatalogueEntity, error) {
	b.detailFetches.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.details[id]
	if !ok {
		return model.CatalogueEntity{}, model.ErrNotFound
	}
	return e, nil
}

func (b *fakeBackend) gate(q string) func() {
	ch := make(chan struct{})
	b.mu.Lock()
	b.gates[q] = ch
	b.mu.Unlock()
	return func() { close(ch) }
}

func newTestSession(t *testing.T, b Backend, debounce time.Duration, opts ...SessionOption) *Session {
	t.Helper()
	s := NewSession(context.Background(), b, config.SearchConfig{
		Debounce:          debounce,
		MinRemoteLength:   3,
		DetailConcurrency: 2,
	}, opts...)
	t.Cleanup(s.Close)
	return s
}

func TestSession_initialViewShowsLoadedList(t *testing.T) {
	s := newTestSession(t, newFakeBackend(), time.Hour)
	v := s.View()
	if v.Phase != PhaseIdle || v.Source != SourceAll || len(v.Items) != 5 {
		t.Errorf("view = %+v", v)
	}
}

func TestSession_debounceCommitsOnlyLastInput(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, b, 30*time.Millisecond)

	for _, in := range []string{"p", "pi", "pik", "pika", "pikachu"} {
		s.SetInput(in)
	}
	if got := s.View().Phase; got != PhaseDebouncing {
		t.Errorf("phase = %q, want debouncing", got)
	}

	require.Eventually(t, func() bool {
		return s.View().Phase == PhaseSettled
	}, time.Second, 5*time.Millisecond)
	s.Wait()

	if n := b.searches.Load(); n != 1 {
		t.Errorf("searches = %d, want 1", n)
	}
	v := s.View()
	if v.Source != SourceRemote || len(v.Items) != 1 || v.Items[0].Name != "pikachu" {
		t.Errorf("view = %+v", v)
	}
}

func TestSession_shortQueryStaysLocal(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, b, time.Hour)

	s.SetInput("ka")
	s.Flush()

	v := s.View()
	if v.Phase != PhaseLocalFilter || v.Source != SourceLocal {
		t.Errorf("view = %+v", v)
	}
	if got := names(v.Items); !equalNames(got, []string{"pikachu", "pikachu-unrelated-demo"}) {
		t.Errorf("items = %v", got)
	}
	if n := b.searches.Load(); n != 0 {
		t.Errorf("searches = %d, want 0", n)
	}
}

func TestSession_emptyRemoteFallsBackToLocalMatch(t *testing.T) {
	s := newTestSession(t, newFakeBackend(), time.Hour)

	s.SetInput("pikach")
	s.Flush()
	s.Wait()

	v := s.View()
	if v.Source != SourceLocal || v.SearchErr != nil {
		t.Errorf("view = %+v", v)
	}
	if got := names(v.Items); !equalNames(got, []string{"pikachu", "pikachu-unrelated-demo"}) {
		t.Errorf("items = %v", got)
	}
}

func TestSession_searchFailureSignalsAndFallsBack(t *testing.T) {
	b := newFakeBackend()
	b.searchErr = errors.New("backend down")
	s := newTestSession(t, b, time.Hour)

	s.SetInput("squirt")
	s.Flush()
	s.Wait()

	v := s.View()
	if v.SearchErr == nil {
		t.Error("expected a search error signal")
	}
	if got := names(v.Items); !equalNames(got, []string{"squirtle"}) {
		t.Errorf("items = %v", got)
	}
}

func TestSession_supersededSearchIsDiscarded(t *testing.T) {
	b := newFakeBackend()
	release := b.gate("pikachu")
	s := newTestSession(t, b, time.Hour)

	s.SetInput("pikachu")
	s.Flush()
	if !s.View().IsSearching() {
		t.Fatalf("phase = %q, want searching", s.View().Phase)
	}

	s.SetInput("squirtle")
	s.Flush()
	require.Eventually(t, func() bool {
		return s.View().Phase == PhaseSettled
	}, time.Second, 5*time.Millisecond)

	release()
	s.Wait()

	v := s.View()
	if v.Query != "squirtle" {
		t.Errorf("query = %q, want squirtle", v.Query)
	}
	if got := names(v.Items); !equalNames(got, []string{"squirtle"}) {
		t.Errorf("items = %v, late result overwrote the newer query", got)
	}
}

func TestSession_typeFilterFetchesDetailsIncrementally(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, b, time.Hour)

	var views []View
	var mu sync.Mutex
	s.OnChange(func(v View) {
		mu.Lock()
		views = append(views, v)
		mu.Unlock()
	})

	s.ToggleType(model.TypeElectric)
	if got := s.View(); got.PendingTypes == 0 && len(got.Items) == 0 {
		t.Fatalf("expected pending candidates, got %+v", got)
	}
	s.Wait()

	v := s.View()
	if got := names(v.Items); !equalNames(got, []string{"pikachu", "pikachu-unrelated-demo"}) {
		t.Errorf("items = %v", got)
	}
	if v.PendingTypes != 0 {
		t.Errorf("pending = %d, want 0", v.PendingTypes)
	}
	if s.ActiveFilterCount() != 1 || !s.HasActiveFilters() {
		t.Errorf("ActiveFilterCount = %d", s.ActiveFilterCount())
	}
	mu.Lock()
	if len(views) < 2 {
		t.Errorf("views emitted = %d, want at least 2", len(views))
	}
	mu.Unlock()

	before := b.detailFetches.Load()
	s.ToggleType(model.TypeWater)
	s.Wait()
	if got := names(s.View().Items); !equalNames(got, []string{"squirtle", "pikachu", "pikachu-unrelated-demo"}) {
		t.Errorf("items = %v", got)
	}
	if after := b.detailFetches.Load(); after != before {
		t.Errorf("detail fetches went from %d to %d, types should be reused", before, after)
	}

	s.ClearFilters()
	if s.HasActiveFilters() || len(s.View().Items) != 5 {
		t.Errorf("after clear: %+v", s.View())
	}
}

func TestSession_failedDetailStaysHiddenUntilNextChange(t *testing.T) {
	b := newFakeBackend()
	b.mu.Lock()
	delete(b.details, 7)
	b.mu.Unlock()
	s := newTestSession(t, b, time.Hour)

	s.ToggleType(model.TypeWater)
	s.Wait()
	if v := s.View(); len(v.Items) != 0 || v.PendingTypes != 0 {
		t.Errorf("view = %+v", v)
	}
	fetches := b.detailFetches.Load()

	s.Refresh()
	s.Wait()
	if n := b.detailFetches.Load(); n != fetches {
		t.Errorf("refresh retried failed lookups: %d -> %d", fetches, n)
	}

	b.mu.Lock()
	b.details[7] = b.entities["squirtle"]
	b.mu.Unlock()

	s.ToggleType(model.TypeFire)
	s.Wait()
	if got := names(s.View().Items); !equalNames(got, []string{"charmander", "squirtle"}) {
		t.Errorf("items = %v", got)
	}
}

func TestSession_recordsMetrics(t *testing.T) {
	m := observability.InitMetrics(prometheus.NewRegistry())
	s := newTestSession(t, newFakeBackend(), time.Hour, WithSessionMetrics(m))

	s.SetInput("pi")
	s.Flush()
	s.SetInput("pikachu")
	s.Flush()
	s.Wait()

	if got := testutil.ToFloat64(m.SearchOutcomesTotal.WithLabelValues("local")); got != 1 {
		t.Errorf("local outcomes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SearchOutcomesTotal.WithLabelValues("remote")); got != 1 {
		t.Errorf("remote outcomes = %v, want 1", got)
	}
}

func TestRun(t *testing.T) {
	b := newFakeBackend()
	m := observability.InitMetrics(prometheus.NewRegistry())

	res := Run(context.Background(), b, "pikach", model.NewFilterOptions(model.TypeFairy), config.SearchConfig{}, m)
	if res.Source != SourceLocal {
		t.Errorf("Source = %q", res.Source)
	}
	if got := names(res.Items); !equalNames(got, []string{"pikachu-unrelated-demo"}) {
		t.Errorf("items = %v", got)
	}
	if got := testutil.ToFloat64(m.DetailFetchesTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("detail fetches = %v, want 2", got)
	}

	res = Run(context.Background(), b, "", model.FilterOptions{}, config.SearchConfig{}, nil)
	if len(res.Items) != 5 || b.searches.Load() != 1 {
		t.Errorf("empty query: items=%d searches=%d", len(res.Items), b.searches.Load())
	}
}
