package resolver

import (
	"context"
	"sync"
)

// ResolveMany resolves every name in packages, at most r.concurrency at a
// time.
//
// The returned slice is 1:1 with the input, in input order, regardless of
// completion order. One package's failure never aborts the others; its slot
// carries a *ResolutionError instead. When ctx is canceled, no new packages
// are dispatched; in-flight ones run to completion or their own timeout, and
// undispatched slots are filled with the context error.
func (r *Resolver) ResolveMany(ctx context.Context, packages []string) []Outcome {
	results := make([]Outcome, len(packages))

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup

dispatchLoop:
	for i, pkg := range packages {
		select {
		case sem <- struct{}{}:
			// acquired
		case <-ctx.Done():
			break dispatchLoop
		}

		wg.Add(1)
		go func(i int, pkg string) {
			defer wg.Done()
			defer func() { <-sem }()

			rec, err := r.Resolve(ctx, pkg)
			out := Outcome{Record: rec, Err: err}
			results[i] = out
			if r.onResult != nil {
				r.onResult(i, out)
			}
		}(i, pkg)
	}

	wg.Wait()

	// Slots never dispatched (cancellation) still need a terminal answer.
	if err := ctx.Err(); err != nil {
		for i, out := range results {
			if out.Err == nil && out.Record.Package == "" {
				results[i] = Outcome{Err: resolutionError(packages[i], err)}
			}
		}
	}
	return results
}
