// Package remote is the HTTP client of the creature catalogue API. It maps
// wire documents onto model types and wraps every failure in a
// model.RemoteFetchError. It never retries; retry policy belongs to the
// query layer.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pitabwire/pokerub/internal/config"
	"github.com/pitabwire/pokerub/internal/observability"
	"github.com/pitabwire/pokerub/model"
)

// Operation names reported in errors, metrics and spans.
const (
	OpListCatalogue     = "listCatalogue"
	OpGetByID           = "getById"
	OpGetByName         = "getByName"
	OpGetIDByName       = "getIdByName"
	OpGetSpeciesMeta    = "getSpeciesMeta"
	OpGetEvolutionChain = "getEvolutionChain"
)

// maxBodyBytes bounds every decoded response body.
const maxBodyBytes = 10 << 20

// Client calls the catalogue API behind a circuit breaker.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *CircuitBreaker
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records request metrics and breaker state on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for the API rooted at cfg.BaseURL.
func NewClient(cfg config.RemoteConfig, logger *zap.Logger, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("remote: base url %q must be absolute", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		breaker: NewCircuitBreaker(cfg.CircuitBreaker),
		logger:  logger.Named("remote"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker.OnStateChange(func(s BreakerState) {
		c.metrics.SetRemoteCircuitBreakerState(float64(s))
		if s == BreakerOpen {
			c.logger.Warn("circuit breaker opened")
		} else {
			c.logger.Info("circuit breaker state changed", zap.Stringer("state", s))
		}
	})
	return c, nil
}

// Breaker exposes the client's circuit breaker.
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

// HealthCheck fails while the circuit breaker is open.
func (c *Client) HealthCheck(_ context.Context) error {
	if c.breaker.State() == BreakerOpen {
		return model.ErrCircuitOpen
	}
	return nil
}

// ListCatalogue returns one page of the catalogue. Rows whose URL carries no
// numeric id get id 0.
func (c *Client) ListCatalogue(ctx context.Context, limit, offset int) (model.CataloguePage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var raw listResponse
	if err := c.get(ctx, OpListCatalogue, c.endpoint(q, "pokemon"), &raw); err != nil {
		return model.CataloguePage{}, err
	}

	page := model.CataloguePage{
		Count:    raw.Count,
		Next:     raw.Next,
		Previous: raw.Previous,
		Results:  make([]model.CatalogueItem, 0, len(raw.Results)),
	}
	for _, row := range raw.Results {
		id, err := ExtractID(row.URL)
		if err != nil {
			c.logger.Debug("list row without numeric id", zap.String("name", row.Name), zap.Error(err))
		}
		page.Results = append(page.Results, model.CatalogueItem{ID: id, Name: row.Name, DetailURL: row.URL})
	}
	return page, nil
}

// GetByID returns the entity with the given id.
func (c *Client) GetByID(ctx context.Context, id int) (model.CatalogueEntity, error) {
	var raw entityResponse
	if err := c.get(ctx, OpGetByID, c.endpoint(nil, "pokemon", strconv.Itoa(id)), &raw,
		observability.AttrEntityID.Int(id)); err != nil {
		return model.CatalogueEntity{}, err
	}
	return raw.toModel(), nil
}

// GetByName returns the entity with the given name, matched case-insensitively.
func (c *Client) GetByName(ctx context.Context, name string) (model.CatalogueEntity, error) {
	return c.getByName(ctx, OpGetByName, name)
}

// GetIDByName resolves a name to its numeric id.
func (c *Client) GetIDByName(ctx context.Context, name string) (int, error) {
	e, err := c.getByName(ctx, OpGetIDByName, name)
	if err != nil {
		return 0, err
	}
	return e.ID, nil
}

func (c *Client) getByName(ctx context.Context, op, name string) (model.CatalogueEntity, error) {
	name = normalizeName(name)
	if !validName(name) {
		return model.CatalogueEntity{}, &model.RemoteFetchError{
			Operation:  op,
			StatusCode: http.StatusNotFound,
			Cause:      fmt.Errorf("invalid name %q", name),
		}
	}
	var raw entityResponse
	if err := c.get(ctx, op, c.endpoint(nil, "pokemon", url.PathEscape(name)), &raw,
		observability.AttrEntityName.String(name)); err != nil {
		return model.CatalogueEntity{}, err
	}
	return raw.toModel(), nil
}

// Search resolves query by exact name, then by numeric id. Every failure,
// including transport errors, yields an empty result.
func (c *Client) Search(ctx context.Context, query string) []model.CatalogueEntity {
	found, err := c.Lookup(ctx, query)
	if err != nil {
		c.logger.Debug("search failed", zap.String("query", query), zap.Error(err))
		return []model.CatalogueEntity{}
	}
	return found
}

// Lookup is Search that tells a clean miss from a failure. A query that
// matches nothing yields an empty slice and a nil error; any failure other
// than a 404 is returned once both lookups have been tried.
func (c *Client) Lookup(ctx context.Context, query string) ([]model.CatalogueEntity, error) {
	q := normalizeName(query)
	if q == "" {
		return []model.CatalogueEntity{}, nil
	}

	e, err := c.GetByName(ctx, q)
	if err == nil {
		return []model.CatalogueEntity{e}, nil
	}
	var failure error
	if !errors.Is(err, model.ErrNotFound) {
		failure = err
	}

	if id, convErr := strconv.Atoi(q); convErr == nil && id >= 0 {
		e, err = c.GetByID(ctx, id)
		if err == nil {
			return []model.CatalogueEntity{e}, nil
		}
		if failure == nil && !errors.Is(err, model.ErrNotFound) {
			failure = err
		}
	}
	if failure != nil {
		return []model.CatalogueEntity{}, failure
	}
	return []model.CatalogueEntity{}, nil
}

// GetSpeciesMeta returns the species metadata of the entity with the given id.
func (c *Client) GetSpeciesMeta(ctx context.Context, id int) (model.SpeciesMeta, error) {
	var raw speciesResponse
	if err := c.get(ctx, OpGetSpeciesMeta, c.endpoint(nil, "pokemon-species", strconv.Itoa(id)), &raw,
		observability.AttrEntityID.Int(id)); err != nil {
		return model.SpeciesMeta{}, err
	}
	return raw.toModel(), nil
}

// GetEvolutionChain fetches a chain by the URL found in species metadata.
// Relative URLs are resolved against the base URL.
func (c *Client) GetEvolutionChain(ctx context.Context, chainURL string) (model.EvolutionChain, error) {
	ref, err := url.Parse(chainURL)
	if err != nil || chainURL == "" {
		return model.EvolutionChain{}, &model.RemoteFetchError{
			Operation: OpGetEvolutionChain,
			Cause:     fmt.Errorf("invalid chain url %q", chainURL),
		}
	}
	target := ref
	if !ref.IsAbs() {
		target = c.baseURL.JoinPath(ref.Path)
	}

	var raw chainResponse
	if err := c.get(ctx, OpGetEvolutionChain, target.String(), &raw); err != nil {
		return model.EvolutionChain{}, err
	}
	return raw.toModel(), nil
}

func (c *Client) endpoint(q url.Values, segments ...string) string {
	u := c.baseURL.JoinPath(segments...)
	// The API redirects paths without a trailing slash. Clearing RawPath
	// makes String re-escape the extended Path.
	u.Path += "/"
	u.RawPath = ""
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// get performs one GET with breaker protection, decoding a 2xx JSON body
// into out.
func (c *Client) get(ctx context.Context, op, target string, out any, attrs ...attribute.KeyValue) (err error) {
	ctx, span := observability.StartSpan(ctx, "remote."+op,
		append(attrs, observability.AttrOperation.String(op))...)
	defer func() { observability.EndSpanWithError(span, err) }()

	if err := c.breaker.Allow(); err != nil {
		c.metrics.RecordRemoteRequest(op, 0, 0)
		return &model.RemoteFetchError{Operation: op, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &model.RemoteFetchError{Operation: op, Cause: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if id := model.CorrelationIDFrom(ctx); id != "" {
		req.Header.Set("X-Correlation-Id", sanitizeHeader(id))
	}
	observability.InjectTraceHeaders(ctx, req.Header)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordRemoteRequest(op, 0, time.Since(start))
		if ctx.Err() == nil || !errors.Is(ctx.Err(), context.Canceled) {
			c.breaker.RecordFailure()
		}
		if isTimeout(err) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return &model.RemoteFetchError{Operation: op, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.metrics.RecordRemoteRequest(op, resp.StatusCode, time.Since(start))
	if err != nil {
		c.breaker.RecordFailure()
		return &model.RemoteFetchError{Operation: op, StatusCode: resp.StatusCode, Cause: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 500:
		c.breaker.RecordFailure()
	case resp.StatusCode >= 400:
		// Client errors say nothing about the API's health.
	default:
		c.breaker.RecordSuccess()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &model.RemoteFetchError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &model.RemoteFetchError{Operation: op, StatusCode: resp.StatusCode, Cause: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// validName rejects empty names and names that would address another path.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, "/\\")
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// sanitizeHeader strips newlines and carriage returns to prevent header injection.
func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
