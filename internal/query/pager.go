package query

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/pokerub/internal/observability"
	"github.com/pitabwire/pokerub/model"
)

// DefaultPageSize is the number of items requested per page.
const DefaultPageSize = 20

// PageFetcher loads one page of the catalogue.
type PageFetcher func(ctx context.Context, limit, offset int) (model.CataloguePage, error)

// Pager accumulates catalogue pages in fetch order. The cursor is the number
// of items fetched so far and the total is the count reported by the first
// page. At most one page fetch is outstanding at a time.
type Pager struct {
	client   *Client
	fetch    PageFetcher
	pageSize int

	mu        sync.Mutex
	items     []model.CatalogueItem
	total     int
	pages     int
	exhausted bool
	lastErr   error
	updatedAt time.Time
	fetching  chan struct{}
	epoch     uint64
}

// NewPager creates an empty pager. pageSize <= 0 selects DefaultPageSize.
func NewPager(c *Client, pageSize int, fetch PageFetcher) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{client: c, fetch: fetch, pageSize: pageSize}
}

// State returns a snapshot of the accumulated list.
func (p *Pager) State() model.PageState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

// IsStale reports whether the first page is older than the list stale time.
func (p *Pager) IsStale() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pages == 0 {
		return false
	}
	return p.client.now().Sub(p.updatedAt) >= p.client.Policy(KindList).StaleTime
}

func (p *Pager) stateLocked() model.PageState {
	return model.PageState{
		Items:              slices.Clone(p.items),
		TotalCount:         p.total,
		Pages:              p.pages,
		HasNextPage:        p.hasNextLocked(),
		IsFetchingNextPage: p.fetching != nil,
		Error:              p.lastErr,
	}
}

func (p *Pager) hasNextLocked() bool {
	if p.pages == 0 {
		return true
	}
	return !p.exhausted && len(p.items) < p.total
}

// FetchNextPage loads the page at the current cursor. If a fetch is already
// outstanding it waits for that fetch instead of issuing another. When no
// page remains it returns the current state without fetching.
func (p *Pager) FetchNextPage(ctx context.Context) model.PageState {
	p.mu.Lock()
	if wait := p.fetching; wait != nil {
		p.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			st := p.State()
			st.Error = ctx.Err()
			return st
		}
		return p.State()
	}
	if !p.hasNextLocked() {
		st := p.stateLocked()
		p.mu.Unlock()
		return st
	}

	offset := len(p.items)
	epoch := p.epoch
	done := make(chan struct{})
	p.fetching = done
	p.mu.Unlock()

	page, err := retry(ctx, p.client, KindList, p.client.Policy(KindList).Retries,
		func(ctx context.Context) (model.CataloguePage, error) {
			return p.fetch(ctx, p.pageSize, offset)
		})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetching == done {
		p.fetching = nil
	}
	close(done)

	if epoch != p.epoch {
		// Reset while in flight; the result belongs to the discarded list.
		return p.stateLocked()
	}
	if err != nil {
		p.lastErr = err
		p.client.metrics.RecordPageFetch("error")
		observability.RequestLogger(ctx, p.client.logger).Warn("page fetch failed", zap.Int("offset", offset), zap.Error(err))
		return p.stateLocked()
	}

	p.client.metrics.RecordPageFetch("ok")
	if p.pages == 0 {
		p.total = page.Count
		p.updatedAt = p.client.now()
	}
	p.items = append(p.items, page.Results...)
	p.pages++
	p.lastErr = nil
	if len(page.Results) == 0 {
		p.exhausted = true
	}
	return p.stateLocked()
}

// EnsureFirstPage loads the first page if nothing has been loaded yet, or
// reloads it when the list has gone stale.
func (p *Pager) EnsureFirstPage(ctx context.Context) model.PageState {
	p.mu.Lock()
	empty := p.pages == 0
	p.mu.Unlock()

	switch {
	case empty:
		return p.FetchNextPage(ctx)
	case p.IsStale():
		return p.Refresh(ctx)
	default:
		return p.State()
	}
}

// Refresh discards every loaded page and fetches the first page again.
func (p *Pager) Refresh(ctx context.Context) model.PageState {
	p.Reset()
	return p.FetchNextPage(ctx)
}

// Reset discards every loaded page. A fetch in flight completes but its
// result is dropped.
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = nil
	p.total = 0
	p.pages = 0
	p.exhausted = false
	p.lastErr = nil
	p.updatedAt = time.Time{}
	p.fetching = nil
	p.epoch++
}
