package integration

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/pitabwire/pokerub/internal/remote/remotetest"
	"github.com/pitabwire/pokerub/model"
)

// newCatalogueOf returns a fake API listing n creatures with ids 1..n.
func newCatalogueOf(t *testing.T, n int) *remotetest.Server {
	t.Helper()
	srv := remotetest.NewServer(t)
	for i := 1; i <= n; i++ {
		srv.AddCreature(remotetest.Creature{ID: i, Name: fmt.Sprintf("creature-%03d", i), Types: []string{"normal"}})
	}
	return srv
}

func TestBrowse_FeedPagesInOffsetOrder(t *testing.T) {
	srv := newCatalogueOf(t, 45)
	h := NewTestHarness(t, WithRemote(srv))

	var st model.PageState
	h.AssertJSON(t, h.GET("/v1/catalogue/feed"), http.StatusOK, &st)
	if len(st.Items) != 20 || st.TotalCount != 45 || !st.HasNextPage {
		t.Fatalf("first page = %d items, total %d, next %v", len(st.Items), st.TotalCount, st.HasNextPage)
	}

	wantLens := []int{40, 45}
	for _, want := range wantLens {
		h.AssertJSON(t, h.POST("/v1/catalogue/feed/next", nil), http.StatusOK, &st)
		if len(st.Items) != want {
			t.Fatalf("items = %d, want %d", len(st.Items), want)
		}
	}
	if st.HasNextPage {
		t.Error("hasNextPage = true after the last page")
	}
	for i, item := range st.Items {
		if item.ID != i+1 {
			t.Fatalf("item %d has id %d, pages were appended out of order", i, item.ID)
		}
	}

	// An exhausted feed issues no further list requests.
	h.AssertJSON(t, h.POST("/v1/catalogue/feed/next", nil), http.StatusOK, &st)
	if n := srv.Requests("/pokemon/"); n != 3 {
		t.Errorf("list requests = %d, want 3", n)
	}
}

func TestBrowse_ConcurrentNextPageRequestsDoNotOverlap(t *testing.T) {
	srv := newCatalogueOf(t, 100)
	h := NewTestHarness(t, WithRemote(srv))
	h.AssertStatus(t, h.GET("/v1/catalogue/feed"), http.StatusOK)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := h.POST("/v1/catalogue/feed/next", nil)
			resp.Body.Close()
		}()
	}
	wg.Wait()

	var st model.PageState
	h.AssertJSON(t, h.GET("/v1/catalogue/feed"), http.StatusOK, &st)
	seen := make(map[int]bool, len(st.Items))
	for _, item := range st.Items {
		if seen[item.ID] {
			t.Fatalf("duplicate id %d in feed", item.ID)
		}
		seen[item.ID] = true
	}
	if st.Pages != srv.Requests("/pokemon/") {
		t.Errorf("pages = %d, list requests = %d", st.Pages, srv.Requests("/pokemon/"))
	}
}

func TestBrowse_DetailIsCachedAcrossRequests(t *testing.T) {
	h := NewTestHarness(t)

	for range 3 {
		var body struct {
			Data model.CatalogueEntity `json:"data"`
		}
		h.AssertJSON(t, h.GET("/v1/catalogue/133"), http.StatusOK, &body)
		if body.Data.Name != "eevee" {
			t.Fatalf("name = %q", body.Data.Name)
		}
	}
	if n := h.Remote.Requests("/pokemon/133/"); n != 1 {
		t.Errorf("detail requests = %d, want 1", n)
	}
}

func TestBrowse_BranchingEvolution(t *testing.T) {
	h := NewTestHarness(t)

	var body struct {
		Stages []model.EvolutionStage `json:"stages"`
	}
	h.AssertJSON(t, h.GET("/v1/catalogue/134/evolution"), http.StatusOK, &body)
	if len(body.Stages) != 3 {
		t.Fatalf("stages = %+v", body.Stages)
	}
	if body.Stages[0].SpeciesName != "eevee" || body.Stages[0].Requirement != "" {
		t.Errorf("root = %+v", body.Stages[0])
	}
	for _, st := range body.Stages[1:] {
		if st.Depth != 1 || st.Requirement == "" {
			t.Errorf("branch = %+v", st)
		}
	}

	// The whole family shares one chain document.
	h.AssertStatus(t, h.GET("/v1/catalogue/135/evolution"), http.StatusOK)
	if n := h.Remote.Requests("/evolution-chain/67/"); n != 1 {
		t.Errorf("chain requests = %d, want 1", n)
	}
}
