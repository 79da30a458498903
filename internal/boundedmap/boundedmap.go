package boundedmap

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Func transforms one input. The index is the input's position.
type Func[T, R any] func(ctx context.Context, index int, in T) (R, error)

// Map applies fn to every input with at most limit calls in flight and returns
// the results in input order. The first error cancels the remaining work and
// is returned with no partial results.
func Map[T, R any](ctx context.Context, inputs []T, limit int, fn Func[T, R]) ([]R, error) {
	n := len(inputs)
	if limit <= 0 || n == 0 {
		return []R{}, nil
	}
	if limit > n {
		limit = n
	}

	results := make([]R, n)
	var cursor atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < limit; w++ {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				i := int(cursor.Add(1) - 1)
				if i >= n {
					return nil
				}
				out, err := fn(gctx, i, inputs[i])
				if err != nil {
					return err
				}
				results[i] = out
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
