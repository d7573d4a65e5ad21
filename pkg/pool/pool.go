// Package pool provides the bounded worker pool used for parallel per-repo
// work. Items are pulled from a shared atomic cursor; completion order is
// nondeterministic but results are reported in original item order.
package pool

import (
	"context"
	"sync"
	"sync/atomic"
)

// Concurrency bounds for the pool.
const (
	// MinWorkers is the lower clamp for the concurrency cap.
	MinWorkers = 1
	// MaxWorkers is the upper clamp for the concurrency cap.
	MaxWorkers = 32
	// DefaultWorkers is used when the caller passes zero.
	DefaultWorkers = 4
)

// Result pairs one item's output with its original index.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

// ClampWorkers normalizes a requested concurrency cap into [MinWorkers,
// MaxWorkers], substituting DefaultWorkers for zero.
func ClampWorkers(workers int) int {
	if workers == 0 {
		workers = DefaultWorkers
	}

	if workers < MinWorkers {
		return MinWorkers
	}

	if workers > MaxWorkers {
		return MaxWorkers
	}

	return workers
}

// Map runs worker over every item with at most the clamped number of
// goroutines. Each worker checks ctx between items; a cancelled context
// leaves the remaining results with ctx.Err(). One item's failure does not
// stop the others.
func Map[T, R any](ctx context.Context, items []T, workers int, worker func(ctx context.Context, item T, index int) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	for i := range results {
		results[i].Index = i
	}

	if len(items) == 0 {
		return results
	}

	workers = ClampWorkers(workers)
	if workers > len(items) {
		workers = len(items)
	}

	var cursor atomic.Int64

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for {
				next := int(cursor.Add(1)) - 1
				if next >= len(items) {
					return
				}

				if ctx.Err() != nil {
					results[next].Err = ctx.Err()

					continue
				}

				value, err := worker(ctx, items[next], next)
				results[next] = Result[R]{Index: next, Value: value, Err: err}
			}
		}()
	}

	wg.Wait()

	return results
}
