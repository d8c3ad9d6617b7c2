package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Band is a half-open row range [Start, End).
type Band struct {
	Start, End int
}

// Split divides n rows into at most parts contiguous bands of near equal size.
func Split(n, parts int) []Band {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	bands := make([]Band, 0, parts)
	size, rem := n/parts, n%parts
	start := 0
	for i := 0; i < parts; i++ {
		end := start + size
		if i < rem {
			end++
		}
		bands = append(bands, Band{Start: start, End: end})
		start = end
	}
	return bands
}

// ForEachBand runs action once per band of n rows, using up to workers goroutines.
// It waits for every band and returns the first error encountered. Bands must not
// share mutable state except through disjoint row ranges.
func ForEachBand(ctx context.Context, n, workers int, action func(ctx context.Context, b Band) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bands := Split(n, workers)
	if len(bands) == 0 {
		return nil
	}
	if len(bands) == 1 {
		return action(ctx, bands[0])
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range bands {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return action(gctx, b)
		})
	}
	return g.Wait()
}
