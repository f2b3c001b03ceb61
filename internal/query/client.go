// Package query is the cache layer between providers and repositories. It
// keys every read by (kind, parameters), serves fresh entries from a bounded
// LRU, returns stale entries while refreshing them in the background,
// coalesces concurrent fetches of one key, and retries transient failures.
package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pitabwire/pokerub/internal/config"
	"github.com/pitabwire/pokerub/internal/observability"
	"github.com/pitabwire/pokerub/model"
)

// Query kinds. A kind selects the staleness window and retry budget and is
// the unit of invalidation.
const (
	KindList      = "list"
	KindDetail    = "detail"
	KindSpecies   = "species"
	KindEvolution = "evolution"
	KindSearch    = "search"
	KindFavorites = "favorites"
)

const defaultMaxEntries = 2000

// Key identifies one cached read.
type Key struct {
	Kind   string
	Params string
}

// NewKey builds a key from a kind and its parameters.
func NewKey(kind string, params ...any) Key {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprint(p)
	}
	return Key{Kind: kind, Params: strings.Join(parts, "/")}
}

func (k Key) String() string { return k.Kind + ":" + k.Params }

// Policy is the caching and retry policy of one kind.
type Policy struct {
	StaleTime time.Duration
	Retries   int
}

type entry struct {
	value     any
	updatedAt time.Time
}

// Client caches reads and runs mutations.
type Client struct {
	cache   *lru.Cache[string, *entry]
	group   singleflight.Group
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time

	policies        map[string]Policy
	defaultPolicy   Policy
	mutationRetries int
	backoffInitial  time.Duration
	backoffMax      time.Duration

	mu          sync.Mutex
	generations map[string]uint64
	inflight    map[string]int

	refreshes sync.WaitGroup
}

// Option customises a Client.
type Option func(*Client)

// WithMetrics records cache metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock replaces the time source used for staleness.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithPolicy overrides the policy of one kind.
func WithPolicy(kind string, p Policy) Option {
	return func(c *Client) { c.policies[kind] = p }
}

// NewClient creates a query client from cfg.
func NewClient(cfg config.QueryConfig, logger *zap.Logger, opts ...Option) (*Client, error) {
	size := cfg.MaxEntries
	if size <= 0 {
		size = defaultMaxEntries
	}
	cache, err := lru.New[string, *entry](size)
	if err != nil {
		return nil, fmt.Errorf("query: create cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	st := cfg.StaleTimes
	c := &Client{
		cache:  cache,
		logger: logger.Named("query"),
		now:    time.Now,
		policies: map[string]Policy{
			KindList:      {StaleTime: st.List, Retries: cfg.ReadRetries},
			KindDetail:    {StaleTime: st.Detail, Retries: cfg.ReadRetries},
			KindSpecies:   {StaleTime: st.Species, Retries: cfg.ReadRetries},
			KindEvolution: {StaleTime: st.Evolution, Retries: cfg.ReadRetries},
			KindSearch:    {StaleTime: st.Search, Retries: 0},
			KindFavorites: {StaleTime: st.Favorites, Retries: cfg.ReadRetries},
		},
		defaultPolicy:   Policy{Retries: cfg.ReadRetries},
		mutationRetries: cfg.MutationRetries,
		backoffInitial:  cfg.BackoffInitial,
		backoffMax:      cfg.BackoffMax,
		generations:     make(map[string]uint64),
		inflight:        make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Policy returns the policy applied to kind.
func (c *Client) Policy(kind string) Policy {
	if p, ok := c.policies[kind]; ok {
		return p
	}
	return c.defaultPolicy
}

// Fetch returns the cached value of key, loading it with fn on a miss.
//
// A fresh entry is returned as-is. A stale entry is returned with IsStale and
// IsLoading set while one background refresh runs. A miss blocks on a single
// coalesced load; failures after retries are reported in Error and are never
// cached.
func Fetch[T any](ctx context.Context, c *Client, key Key, fn func(context.Context) (T, error)) model.QueryResult[T] {
	policy := c.Policy(key.Kind)
	load := func(ctx context.Context) (any, error) { return fn(ctx) }

	if e, ok := c.cache.Get(key.String()); ok {
		if v, ok := e.value.(T); ok {
			res := model.QueryResult[T]{Data: v, UpdatedAt: e.updatedAt}
			if c.now().Sub(e.updatedAt) < policy.StaleTime {
				c.metrics.RecordQueryCacheHit(key.Kind)
				observability.RecordCacheEvent(ctx, key.Kind, key.String(), observability.CacheHit)
				return res
			}
			c.metrics.RecordQueryCacheStale(key.Kind)
			observability.RecordCacheEvent(ctx, key.Kind, key.String(), observability.CacheStale)
			c.refresh(ctx, key, policy, load)
			res.IsStale = true
			res.IsLoading = true
			return res
		}
	}

	c.metrics.RecordQueryCacheMiss(key.Kind)
	observability.RecordCacheEvent(ctx, key.Kind, key.String(), observability.CacheMiss)
	e, err := c.load(ctx, key, policy, load)
	if err != nil {
		return model.QueryResult[T]{Error: err}
	}
	v, _ := e.value.(T)
	return model.QueryResult[T]{Data: v, UpdatedAt: e.updatedAt}
}

// Peek reports the cached state of key without fetching.
func Peek[T any](c *Client, key Key) model.QueryResult[T] {
	var res model.QueryResult[T]
	c.mu.Lock()
	res.IsLoading = c.inflight[key.String()] > 0
	c.mu.Unlock()

	e, ok := c.cache.Peek(key.String())
	if !ok {
		return res
	}
	if v, ok := e.value.(T); ok {
		res.Data = v
		res.UpdatedAt = e.updatedAt
		res.IsStale = c.now().Sub(e.updatedAt) >= c.Policy(key.Kind).StaleTime
	}
	return res
}

// Invalidate drops every entry of the given kinds. Loads of those kinds that
// are in flight complete for their current callers but are not cached, and
// later reads start a new load.
func (c *Client) Invalidate(kinds ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, kind := range kinds {
		c.generations[kind]++
		prefix := kind + ":"
		for _, k := range c.cache.Keys() {
			if strings.HasPrefix(k, prefix) {
				c.cache.Remove(k)
			}
		}
		for k := range c.inflight {
			if strings.HasPrefix(k, prefix) {
				c.group.Forget(k)
			}
		}
	}
	c.metrics.SetQueryCacheEntries(c.cache.Len())
}

// Len returns the number of cached entries.
func (c *Client) Len() int { return c.cache.Len() }

// Wait blocks until background refreshes started so far have finished.
func (c *Client) Wait() { c.refreshes.Wait() }

// load runs fn once per key across concurrent callers. The shared load is
// detached from any single caller's cancellation; a caller whose ctx ends
// stops waiting but does not abort the load for the others.
func (c *Client) load(ctx context.Context, key Key, policy Policy, fn func(context.Context) (any, error)) (*entry, error) {
	k := key.String()
	detached := context.WithoutCancel(ctx)

	ch := c.group.DoChan(k, func() (_ any, err error) {
		spanCtx, span := observability.StartSpan(detached, "query.load",
			observability.AttrQueryKind.String(key.Kind),
			observability.AttrCacheKey.String(k))
		defer func() { observability.EndSpanWithError(span, err) }()

		c.mu.Lock()
		c.inflight[k]++
		gen := c.generations[key.Kind]
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			if c.inflight[k]--; c.inflight[k] <= 0 {
				delete(c.inflight, k)
			}
			c.mu.Unlock()
		}()

		v, err := retry(spanCtx, c, key.Kind, policy.Retries, fn)
		if err != nil {
			return nil, err
		}
		e := &entry{value: v, updatedAt: c.now()}

		c.mu.Lock()
		if c.generations[key.Kind] == gen {
			c.cache.Add(k, e)
		}
		n := c.cache.Len()
		c.mu.Unlock()
		c.metrics.SetQueryCacheEntries(n)
		observability.RequestLogger(ctx, c.logger).Debug("query loaded", zap.String("key", k))
		return e, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.RecordQueryCoalesced(key.Kind)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*entry), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) refresh(ctx context.Context, key Key, policy Policy, fn func(context.Context) (any, error)) {
	detached := context.WithoutCancel(ctx)
	c.refreshes.Add(1)
	go func() {
		defer c.refreshes.Done()
		if _, err := c.load(detached, key, policy, fn); err != nil {
			observability.RequestLogger(detached, c.logger).Warn("background refresh failed, keeping stale value",
				zap.String("key", key.String()), zap.Error(err))
		}
	}()
}
