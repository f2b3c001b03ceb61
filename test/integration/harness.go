// Package integration provides a reusable test harness for end-to-end
// integration testing of the PokeRub server. It starts a full HTTP server in
// front of a fake catalogue API with a configurable local store.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/pokerub/internal/config"
	"github.com/pitabwire/pokerub/internal/observability"
	"github.com/pitabwire/pokerub/internal/provider"
	"github.com/pitabwire/pokerub/internal/query"
	"github.com/pitabwire/pokerub/internal/remote"
	"github.com/pitabwire/pokerub/internal/remote/remotetest"
	"github.com/pitabwire/pokerub/internal/repository"
	"github.com/pitabwire/pokerub/internal/store"
	"github.com/pitabwire/pokerub/internal/transport"
)

// TestHarness encapsulates a fully wired server with a fake catalogue API.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server

	// Internal components exposed for advanced test scenarios.
	Remote    *remotetest.Server
	Client    *remote.Client
	Queries   *query.Client
	Store     *store.Store
	Catalogue *provider.CatalogueProvider
	Metrics   *observability.Metrics

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	remote         *remotetest.Server
	backend        store.Backend
	driver         string
	breaker        *config.CircuitBreakerConfig
	handlerTimeout time.Duration
	remoteTimeout  time.Duration
	pageSize       int
}

// WithRemote runs the harness against srv instead of a default fake.
func WithRemote(srv *remotetest.Server) HarnessOption {
	return func(c *harnessConfig) { c.remote = srv }
}

// WithStoreBackend persists favorites in b, reported under driver.
func WithStoreBackend(driver string, b store.Backend) HarnessOption {
	return func(c *harnessConfig) {
		c.driver = driver
		c.backend = b
	}
}

// WithCircuitBreaker overrides the remote circuit breaker settings.
func WithCircuitBreaker(cb config.CircuitBreakerConfig) HarnessOption {
	return func(c *harnessConfig) { c.breaker = &cb }
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) { c.handlerTimeout = d }
}

// WithRemoteTimeout sets the timeout of each call to the catalogue API.
func WithRemoteTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) { c.remoteTimeout = d }
}

// WithPageSize sets the feed page size.
func WithPageSize(n int) HarnessOption {
	return func(c *harnessConfig) { c.pageSize = n }
}

// NewTestHarness creates and starts a full server instance. The server is
// automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()
	hc := &harnessConfig{
		handlerTimeout: 10 * time.Second,
		remoteTimeout:  5 * time.Second,
		driver:         config.StoreDriverMemory,
	}
	for _, opt := range opts {
		opt(hc)
	}
	if hc.remote == nil {
		hc.remote = remotetest.NewDefaultServer(t)
	}
	if hc.backend == nil {
		hc.backend = store.NewMemoryBackend()
	}

	h := &TestHarness{t: t, Remote: hc.remote}

	// Step 1: Build config.
	h.cfg = config.Defaults()
	h.cfg.Server.HandlerTimeout = hc.handlerTimeout
	h.cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:19006"}
	h.cfg.Remote.BaseURL = hc.remote.BaseURL()
	h.cfg.Remote.Timeout = hc.remoteTimeout
	if hc.breaker != nil {
		h.cfg.Remote.CircuitBreaker = *hc.breaker
	}
	if hc.pageSize > 0 {
		h.cfg.Remote.PageSize = hc.pageSize
	}
	h.cfg.Query.BackoffInitial = time.Millisecond
	h.cfg.Query.BackoffMax = 5 * time.Millisecond

	// Step 2: Telemetry on a private registry.
	h.Metrics = observability.InitMetrics(prometheus.NewRegistry())

	// Step 3: Store, remote client and query cache.
	h.Store = store.New(hc.driver, hc.backend, zap.NewNop(), store.WithMetrics(h.Metrics))

	client, err := remote.NewClient(h.cfg.Remote, zap.NewNop(),
		remote.WithHTTPClient(&http.Client{Timeout: h.cfg.Remote.Timeout}),
		remote.WithMetrics(h.Metrics))
	if err != nil {
		t.Fatalf("remote client: %v", err)
	}
	h.Client = client

	h.Queries, err = query.NewClient(h.cfg.Query, zap.NewNop(), query.WithMetrics(h.Metrics))
	if err != nil {
		t.Fatalf("query client: %v", err)
	}

	// Step 4: Providers.
	h.Catalogue = provider.NewCatalogueProvider(repository.NewCatalogue(client), h.Queries,
		h.cfg.Remote.PageSize, h.cfg.Search.MinRemoteLength)
	evolution := provider.NewEvolutionProvider(repository.NewEvolution(client), h.Catalogue, h.Queries)
	favorites := provider.NewFavoritesProvider(
		repository.NewFavorites(h.Store, h.cfg.Store.FavoritesKey, zap.NewNop(), h.Metrics),
		h.Catalogue, h.Queries, zap.NewNop(), h.Metrics)

	// Step 5: Router with full middleware chain.
	router := transport.NewRouter(transport.Dependencies{
		Config:    h.cfg,
		Logger:    zap.NewNop(),
		Metrics:   h.Metrics,
		Catalogue: h.Catalogue,
		Evolution: evolution,
		Favorites: favorites,
		ReadyHandler: observability.HandleReady(observability.ReadinessChecks{
			Store:  h.Store,
			Remote: client,
		}),
	})

	// Step 6: Start test server.
	h.server = httptest.NewServer(router)
	t.Cleanup(func() {
		h.server.Close()
		h.Queries.Wait()
	})
	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// --- HTTP client helpers ---

// GET performs a GET request.
func (h *TestHarness) GET(path string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodGet, path, nil)
}

// POST performs a POST request with a JSON body.
func (h *TestHarness) POST(path string, body any) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodPost, path, body)
}

// DELETE performs a DELETE request.
func (h *TestHarness) DELETE(path string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodDelete, path, nil)
}

func (h *TestHarness) doRequest(method, path string, body any) *http.Response {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, reader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}
