package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := InitMetrics(reg)
	return m, reg
}

func TestInitMetrics_registersAllMetrics(t *testing.T) {
	m, reg := newTestMetrics(t)
	if m == nil {
		t.Fatal("InitMetrics returned nil")
	}

	expected := []string{
		"pokerub_http_requests_total",
		"pokerub_http_request_duration_seconds",
		"pokerub_http_request_size_bytes",
		"pokerub_http_response_size_bytes",
		"pokerub_remote_requests_total",
		"pokerub_remote_request_duration_seconds",
		"pokerub_remote_circuit_breaker_state",
		"pokerub_query_cache_hits_total",
		"pokerub_query_cache_misses_total",
		"pokerub_query_cache_stale_total",
		"pokerub_query_coalesced_total",
		"pokerub_query_retries_total",
		"pokerub_query_cache_entries",
		"pokerub_pages_fetched_total",
		"pokerub_store_operations_total",
		"pokerub_store_corrupt_values_total",
		"pokerub_favorites_mutations_total",
		"pokerub_favorites_count",
		"pokerub_search_duration_seconds",
		"pokerub_search_outcomes_total",
		"pokerub_filter_detail_fetches_total",
	}

	// Record a value for each metric so they appear in Gather.
	m.RecordHTTPRequest("GET", "/test", 200, time.Millisecond, 0, 100)
	m.RecordRemoteRequest("getById", 200, time.Millisecond)
	m.SetRemoteCircuitBreakerState(0)
	m.RecordQueryCacheHit("detail")
	m.RecordQueryCacheMiss("detail")
	m.RecordQueryCacheStale("detail")
	m.RecordQueryCoalesced("detail")
	m.RecordQueryRetry("detail")
	m.SetQueryCacheEntries(3)
	m.RecordPageFetch("success")
	m.RecordStoreOperation("memory", "set", "success")
	m.RecordStoreCorruptValue()
	m.RecordFavoritesMutation("add", "success")
	m.SetFavoritesCount(2)
	m.RecordSearch(time.Millisecond, "remote")
	m.RecordDetailFetch("success")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestMetrics_nilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordHTTPRequest("GET", "/", 200, time.Millisecond, 0, 0)
	m.RecordRemoteRequest("getById", 500, time.Millisecond)
	m.RecordQueryCacheHit("detail")
	m.RecordFavoritesMutation("add", "error")
	m.RecordSearch(time.Millisecond, "local")
}

func TestRecordRemoteRequest(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.RecordRemoteRequest("getById", 200, 50*time.Millisecond)
	m.RecordRemoteRequest("getById", 200, 10*time.Millisecond)
	m.RecordRemoteRequest("getById", 0, time.Second)

	if val := testutil.ToFloat64(m.RemoteRequestsTotal.WithLabelValues("getById", "200")); val != 2 {
		t.Errorf("getById 200 = %v, want 2", val)
	}
	if val := testutil.ToFloat64(m.RemoteRequestsTotal.WithLabelValues("getById", "0")); val != 1 {
		t.Errorf("getById 0 = %v, want 1", val)
	}
}

func TestSetRemoteCircuitBreakerState(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.SetRemoteCircuitBreakerState(2)
	if val := testutil.ToFloat64(m.RemoteCircuitBreakerState); val != 2 {
		t.Errorf("breaker state = %v, want 2", val)
	}
	m.SetRemoteCircuitBreakerState(0)
	if val := testutil.ToFloat64(m.RemoteCircuitBreakerState); val != 0 {
		t.Errorf("breaker state = %v, want 0", val)
	}
}

func TestRecordQueryCache(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.RecordQueryCacheHit("list")
	m.RecordQueryCacheHit("list")
	m.RecordQueryCacheMiss("list")
	m.RecordQueryCacheStale("detail")

	if val := testutil.ToFloat64(m.QueryCacheHitsTotal.WithLabelValues("list")); val != 2 {
		t.Errorf("list hits = %v, want 2", val)
	}
	if val := testutil.ToFloat64(m.QueryCacheMissesTotal.WithLabelValues("list")); val != 1 {
		t.Errorf("list misses = %v, want 1", val)
	}
	if val := testutil.ToFloat64(m.QueryCacheStaleTotal.WithLabelValues("detail")); val != 1 {
		t.Errorf("detail stale = %v, want 1", val)
	}
}

func TestRecordFavoritesMutation(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.RecordFavoritesMutation("add", "success")
	m.RecordFavoritesMutation("remove", "error")
	m.SetFavoritesCount(4)

	if val := testutil.ToFloat64(m.FavoritesMutationsTotal.WithLabelValues("add", "success")); val != 1 {
		t.Errorf("add success = %v, want 1", val)
	}
	if val := testutil.ToFloat64(m.FavoritesMutationsTotal.WithLabelValues("remove", "error")); val != 1 {
		t.Errorf("remove error = %v, want 1", val)
	}
	if val := testutil.ToFloat64(m.FavoritesCount); val != 4 {
		t.Errorf("favorites count = %v, want 4", val)
	}
}

func TestRecordSearch(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.RecordSearch(100*time.Millisecond, "remote")
	m.RecordSearch(5*time.Millisecond, "local")

	if count := testutil.CollectAndCount(m.SearchDuration); count == 0 {
		t.Error("expected search duration histogram to have observations")
	}
	if val := testutil.ToFloat64(m.SearchOutcomesTotal.WithLabelValues("local")); val != 1 {
		t.Errorf("local outcomes = %v, want 1", val)
	}
}

func TestMetricsMiddleware_recordsRequestMetrics(t *testing.T) {
	m, _ := newTestMetrics(t)

	// Build a chi router so route patterns are captured.
	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Get("/v1/catalogue/{ref}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/catalogue/pikachu", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// Verify metrics were recorded with the route pattern, not the actual path.
	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/v1/catalogue/{ref}", "200"))
	if val != 1 {
		t.Errorf("requests total = %v, want 1", val)
	}
}

func TestMetricsMiddleware_capturesResponseSize(t *testing.T) {
	m, _ := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("healthy"))
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	// Response size should have been recorded.
	count := testutil.CollectAndCount(m.HTTPResponseSizeBytes)
	if count == 0 {
		t.Error("expected response size histogram to have observations")
	}
}

func TestMetricsMiddleware_capturesStatusCode(t *testing.T) {
	m, _ := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Post("/v1/favorites", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/favorites", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/v1/favorites", "400"))
	if val != 1 {
		t.Errorf("400 requests = %v, want 1", val)
	}
}

func TestMetricsMiddleware_fallsBackToPath(t *testing.T) {
	m, _ := newTestMetrics(t)

	// Use middleware directly without chi router.
	handler := m.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/raw/path", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Without chi, should fall back to raw path.
	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/raw/path", "200"))
	if val != 1 {
		t.Errorf("raw path requests = %v, want 1", val)
	}
}

func TestHandler_servesMetrics(t *testing.T) {
	handler := Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	// Prometheus handler should return at least go runtime metrics.
	if !strings.Contains(body, "go_") {
		t.Error("metrics response should contain go runtime metrics")
	}
}

func TestHistogramBuckets(t *testing.T) {
	// Verify bucket configurations are correct.
	if len(httpDurationBuckets) != 11 {
		t.Errorf("httpDurationBuckets length = %d, want 11", len(httpDurationBuckets))
	}
	if len(backendDurationBuckets) != 9 {
		t.Errorf("backendDurationBuckets length = %d, want 9", len(backendDurationBuckets))
	}
	if len(bodySizeBuckets) != 5 {
		t.Errorf("bodySizeBuckets length = %d, want 5", len(bodySizeBuckets))
	}

	// Verify buckets are sorted ascending.
	for i := 1; i < len(httpDurationBuckets); i++ {
		if httpDurationBuckets[i] <= httpDurationBuckets[i-1] {
			t.Errorf("httpDurationBuckets not sorted at index %d", i)
		}
	}
}
