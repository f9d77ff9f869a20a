// Package parallel contains the bounded worker pool used to scan partitions.
package parallel

import "context"
import "runtime"

import "github.com/klauspost/cpuid/v2"
import "golang.org/x/sync/errgroup"

// Workers returns the default number of concurrent workers, one per physical core
func Workers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// ForEach executes body for every integer from 0 to length with at most limit
// concurrent goroutines. The first error cancels the context passed to the
// remaining bodies, stops scheduling new ones and is returned. A limit of
// zero or less means Workers().
func ForEach(ctx context.Context, length, limit int, body func(ctx context.Context, i int) error) error {
	if limit <= 0 {
		limit = Workers()
	}
	if length <= 0 {
		return nil // No iterations to perform
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < length; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return body(ctx, i)
		})
	}
	return g.Wait()
}
