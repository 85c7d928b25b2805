package storage

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchFetcher reads many objects in parallel. Per-object failures are
// collected rather than aborting the batch.
type BatchFetcher struct {
	storage     ObjectStorage
	concurrency int
}

// BatchResult maps each requested path to its contents or its error.
type BatchResult struct {
	Data   map[string][]byte
	Errors map[string]error
}

// NewBatchFetcher creates a fetcher running at most concurrency reads at once.
func NewBatchFetcher(storage ObjectStorage, concurrency int) *BatchFetcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &BatchFetcher{storage: storage, concurrency: concurrency}
}

// Fetch reads every path. It returns an error only if ctx is cancelled.
func (b *BatchFetcher) Fetch(ctx context.Context, paths []string) (*BatchResult, error) {
	result := &BatchResult{
		Data:   make(map[string][]byte, len(paths)),
		Errors: make(map[string]error),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := b.storage.Get(gctx, p)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[p] = err
				return nil
			}
			result.Data[p] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
