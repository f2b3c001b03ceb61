package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	backendDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets        = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the data layer. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Remote API metrics
	RemoteRequestsTotal       *prometheus.CounterVec
	RemoteRequestDuration     *prometheus.HistogramVec
	RemoteCircuitBreakerState prometheus.Gauge

	// Query cache metrics
	QueryCacheHitsTotal   *prometheus.CounterVec
	QueryCacheMissesTotal *prometheus.CounterVec
	QueryCacheStaleTotal  *prometheus.CounterVec
	QueryCoalescedTotal   *prometheus.CounterVec
	QueryRetriesTotal     *prometheus.CounterVec
	QueryCacheEntries     prometheus.Gauge
	PagesFetchedTotal     *prometheus.CounterVec

	// Local store metrics
	StoreOperationsTotal    *prometheus.CounterVec
	StoreCorruptValuesTotal prometheus.Counter

	// Favorites metrics
	FavoritesMutationsTotal *prometheus.CounterVec
	FavoritesCount          prometheus.Gauge

	// Search metrics
	SearchDuration      prometheus.Histogram
	SearchOutcomesTotal *prometheus.CounterVec
	DetailFetchesTotal  *prometheus.CounterVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokerub_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pokerub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pokerub_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pokerub_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Remote
		RemoteRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokerub_remote_requests_total",
			Help: "Total number of catalogue API requests.",
		}, []string{"operation", "status"}),
		RemoteRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pokerub_remote_request_duration_seconds",
			Help:    "Catalogue API request duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"operation"}),
		RemoteCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pokerub_remote_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),

		// Query cache
		QueryCacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokerub_query_cache_hits_total",
			Help: "Total fresh query cache hits.",
		}, []string{"kind"}),
		QueryCacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokerub_query_cache_misses_total",
			Help: "Total query cache misses.",
		}, []string{"kind"}),
		QueryCacheStaleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokerub_query_cache_stale_total",
			Help: "Total stale query cache hits that triggered a background refresh.",
		}, []string{"kind"}),
		QueryCoalescedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokerub_query_coalesced_total",
			Help: "Total fetches that joined an in-flight fetch for the same key.",
		}, []string{"kind"}),
		QueryRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokerub_query_retries_total",
			Help: "Total query and mutation retries.",
		}, []string{"kind"}),
		QueryCacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pokerub_query_cache_entries",
			Help: "Number of entries held by the query cache.",
		}),
		PagesFetchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokerub_pages_fetched_total",
			Help: "Total catalogue pages fetched by infinite lists.",
		}, []string{"status"}),

		// Store
		StoreOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokerub_store_operations_total",
			Help: "Total local store operations.",
		}, []string{"driver", "operation", "status"}),
		StoreCorruptValuesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pokerub_store_corrupt_values_total",
			Help: "Total stored values that failed to decode and were treated as absent.",
		}),

		// Favorites
		FavoritesMutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokerub_favorites_mutations_total",
			Help: "Total favorites mutations.",
		}, []string{"operation", "status"}),
		FavoritesCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pokerub_favorites_count",
			Help: "Number of stored favorites as of the last read or write.",
		}),

		// Search
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pokerub_search_duration_seconds",
			Help:    "Search resolution duration in seconds.",
			Buckets: backendDurationBuckets,
		}),
		SearchOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokerub_search_outcomes_total",
			Help: "Total settled searches by the source of the displayed set.",
		}, []string{"source"}),
		DetailFetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokerub_filter_detail_fetches_total",
			Help: "Total detail fetches issued to resolve type filters.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Remote
		m.RemoteRequestsTotal,
		m.RemoteRequestDuration,
		m.RemoteCircuitBreakerState,
		// Query cache
		m.QueryCacheHitsTotal,
		m.QueryCacheMissesTotal,
		m.QueryCacheStaleTotal,
		m.QueryCoalescedTotal,
		m.QueryRetriesTotal,
		m.QueryCacheEntries,
		m.PagesFetchedTotal,
		// Store
		m.StoreOperationsTotal,
		m.StoreCorruptValuesTotal,
		// Favorites
		m.FavoritesMutationsTotal,
		m.FavoritesCount,
		// Search
		m.SearchDuration,
		m.SearchOutcomesTotal,
		m.DetailFetchesTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	if m == nil {
		return
	}
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordRemoteRequest records a catalogue API request. status is 0 when no
// response was received.
func (m *Metrics) RecordRemoteRequest(operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RemoteRequestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.RemoteRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetRemoteCircuitBreakerState sets the circuit breaker state.
// State: 0=closed, 1=half-open, 2=open.
func (m *Metrics) SetRemoteCircuitBreakerState(state float64) {
	if m == nil {
		return
	}
	m.RemoteCircuitBreakerState.Set(state)
}

// RecordQueryCacheHit records a fresh cache hit.
func (m *Metrics) RecordQueryCacheHit(kind string) {
	if m == nil {
		return
	}
	m.QueryCacheHitsTotal.WithLabelValues(kind).Inc()
}

// RecordQueryCacheMiss records a cache miss.
func (m *Metrics) RecordQueryCacheMiss(kind string) {
	if m == nil {
		return
	}
	m.QueryCacheMissesTotal.WithLabelValues(kind).Inc()
}

// RecordQueryCacheStale records a stale hit.
func (m *Metrics) RecordQueryCacheStale(kind string) {
	if m == nil {
		return
	}
	m.QueryCacheStaleTotal.WithLabelValues(kind).Inc()
}

// RecordQueryCoalesced records a fetch that shared another caller's result.
func (m *Metrics) RecordQueryCoalesced(kind string) {
	if m == nil {
		return
	}
	m.QueryCoalescedTotal.WithLabelValues(kind).Inc()
}

// RecordQueryRetry records a retry of a query or mutation.
func (m *Metrics) RecordQueryRetry(kind string) {
	if m == nil {
		return
	}
	m.QueryRetriesTotal.WithLabelValues(kind).Inc()
}

// SetQueryCacheEntries sets the number of cached entries.
func (m *Metrics) SetQueryCacheEntries(n int) {
	if m == nil {
		return
	}
	m.QueryCacheEntries.Set(float64(n))
}

// RecordPageFetch records one infinite-list page fetch.
func (m *Metrics) RecordPageFetch(status string) {
	if m == nil {
		return
	}
	m.PagesFetchedTotal.WithLabelValues(status).Inc()
}

// RecordStoreOperation records a local store operation.
func (m *Metrics) RecordStoreOperation(driver, operation, status string) {
	if m == nil {
		return
	}
	m.StoreOperationsTotal.WithLabelValues(driver, operation, status).Inc()
}

// RecordStoreCorruptValue records a stored value that failed to decode.
func (m *Metrics) RecordStoreCorruptValue() {
	if m == nil {
		return
	}
	m.StoreCorruptValuesTotal.Inc()
}

// RecordFavoritesMutation records an add, remove or clear of favorites.
func (m *Metrics) RecordFavoritesMutation(operation, status string) {
	if m == nil {
		return
	}
	m.FavoritesMutationsTotal.WithLabelValues(operation, status).Inc()
}

// SetFavoritesCount sets the number of stored favorites.
func (m *Metrics) SetFavoritesCount(n int) {
	if m == nil {
		return
	}
	m.FavoritesCount.Set(float64(n))
}

// RecordSearch records a settled search and the source of its displayed set.
func (m *Metrics) RecordSearch(duration time.Duration, source string) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(duration.Seconds())
	m.SearchOutcomesTotal.WithLabelValues(source).Inc()
}

// RecordDetailFetch records a detail fetch issued by the type filter.
func (m *Metrics) RecordDetailFetch(status string) {
	if m == nil {
		return
	}
	m.DetailFetchesTotal.WithLabelValues(status).Inc()
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern returns chi's matched route pattern, with mount wildcards
// collapsed, falling back to the raw path outside a chi router.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	if pattern := strings.TrimSuffix(rctx.RoutePattern(), "/*"); pattern != "" {
		return pattern
	}
	return r.URL.Path
}

// responseRecorder captures the status and body size of a response.
type responseRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *responseRecorder) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
