package search

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/pokerub/internal/config"
	"github.com/pitabwire/pokerub/internal/observability"
	"github.com/pitabwire/pokerub/model"
)

// Run resolves one committed query against backend without a session. Type
// details missing for filter candidates are fetched before returning;
// candidates whose fetch fails are left out of the result and counted in
// Pending.
func Run(ctx context.Context, backend Backend, query string, filter model.FilterOptions,
	cfg config.SearchConfig, metrics *observability.Metrics,
) Result {
	cfg = withSearchDefaults(cfg)
	start := time.Now()

	ctx, span := observability.StartSpan(ctx, "search.run",
		observability.AttrSearchQuery.String(query))
	defer span.End()

	in := Input{
		Query:           query,
		MinRemoteLength: cfg.MinRemoteLength,
		Loaded:          backend.Loaded(),
		Filter:          filter,
	}
	if Decide(query, cfg.MinRemoteLength) == DecideRemote {
		in.Remote, in.RemoteErr = backend.Search(ctx, query)
	}

	res := Resolve(in)
	if len(res.Pending) > 0 {
		var (
			mu    sync.Mutex
			types = make(map[int][]model.TypeTag, len(res.Pending))
		)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.DetailConcurrency)
		for _, id := range res.Pending {
			g.Go(func() error {
				e, err := backend.Detail(gctx, id)
				if err != nil {
					metrics.RecordDetailFetch("error")
					return nil
				}
				metrics.RecordDetailFetch("ok")
				mu.Lock()
				types[id] = e.TypeTags()
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		in.Types = func(id int) ([]model.TypeTag, bool) {
			t, ok := types[id]
			return t, ok
		}
		res = Resolve(in)
	}

	metrics.RecordSearch(time.Since(start), string(res.Source))
	return res
}
