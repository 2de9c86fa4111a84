package document

import "context"

func MapBounded[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) ([]R, []error) {
	return mapBounded(ctx, items, limit, fn)
}
