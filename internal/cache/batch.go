package cache

import (
	"context"
	"sync"
	"time"
)

// Request describes one keyed fetch in a batch.
type Request struct {
	Bucket Bucket
	Key    string
	TTL    time.Duration
	Fetch  Fetcher
}

// BatchResult mirrors its Request by position. Exactly one of
// Value/Err is meaningful; Stale marks a degraded value served after a
// fetch failure.
type BatchResult struct {
	Value any
	Stale bool
	Err   error
}

// BatchFetch issues all requests concurrently. No single failure
// aborts the batch: each request succeeds or fails independently, and
// results keep a 1:1 positional correspondence with requests.
func (s *Store) BatchFetch(ctx context.Context, reqs []Request) []BatchResult {
	results := make([]BatchResult, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()

			res, err := s.Get(ctx, req.Bucket, req.Key, req.TTL, req.Fetch)
			if err != nil {
				results[i] = BatchResult{Err: err}
				return
			}
			results[i] = BatchResult{Value: res.Value, Stale: res.Stale}
		}(i, req)
	}
	wg.Wait()

	return results
}

// Prefetch warms the critical set of keys. Individual failures are
// logged and absorbed; a cold key simply stays missing until the next
// get re-fetches it.
func (s *Store) Prefetch(ctx context.Context, reqs []Request) {
	for i, res := range s.BatchFetch(ctx, reqs) {
		if res.Err != nil {
			s.logger.Warnf("prefetch failed for %s/%s: %v", reqs[i].Bucket, reqs[i].Key, res.Err)
		}
	}
}
