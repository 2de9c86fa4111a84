package document

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// mapBounded runs fn over items with at most limit calls in flight. Results
// and errors are stored at the index of their item, so completion order does
// not matter. One failing item does not cancel the others.
func mapBounded[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) ([]R, []error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))
	if limit <= 0 {
		limit = FanOutLimit
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	return results, errs
}
