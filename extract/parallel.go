package extract

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ParallelExtract runs one iterator per token group with at most workers
// running at once and passes every record to fn. fn and fetcher must be safe
// for concurrent use. The first error cancels the remaining groups and is
// returned. With no groups the base query is walked by a single iterator.
func ParallelExtract(ctx context.Context, fetcher Fetcher, baseQuery string, groups [][]string, limit, workers int, fn func(context.Context, Record) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	run := func(groups [][]string) func() error {
		return func() error {
			it := NewIterator(fetcher, baseQuery, groups, limit)
			for rec, err := range it.All(ctx) {
				if err != nil {
					return err
				}
				if err := fn(ctx, rec); err != nil {
					return err
				}
			}
			return nil
		}
	}

	if len(groups) == 0 {
		g.Go(run(nil))
		return g.Wait()
	}
	for _, group := range groups {
		g.Go(run([][]string{group}))
	}
	return g.Wait()
}
