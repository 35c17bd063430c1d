package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"lottery-view/internal/logs"
	"lottery-view/internal/metrics"
)

// Fetcher loads the authoritative value for a key on a cache miss.
type Fetcher func(ctx context.Context) (any, error)

// Result carries a cached value plus its provenance so the view layer
// can label degraded data instead of presenting it as authoritative.
type Result struct {
	Value     any
	Stale     bool
	FetchedAt time.Time
}

// Store is a concurrency-safe bucketed cache with independent expiry
// per entry.
//
// Discipline:
//   - mutation is a single atomic insert-or-replace under the lock,
//     never a read-modify-write of a stored value
//   - concurrent misses for the same key are coalesced into one fetch
//     via singleflight, so a rate-limited RPC endpoint sees one call
//   - a fetch failure falls back to the prior entry, even expired,
//     logged as a degraded-mode warning
type Store struct {
	mu      sync.RWMutex
	buckets map[Bucket]map[string]Entry
	flight  singleflight.Group
	logger  *logs.Logger
	metrics *metrics.Registry
}

// NewStore initializes an empty store.
func NewStore(logger *logs.Logger, reg *metrics.Registry) *Store {
	return &Store{
		buckets: make(map[Bucket]map[string]Entry),
		logger:  logger,
		metrics: reg,
	}
}

// Get returns the cached value for bucket/key if it has not expired;
// otherwise it invokes fetch and stores a fresh entry with
// expiry = now + ttl. If fetch fails and any prior entry exists, the
// stale value is returned with Stale set; with no prior entry the
// error propagates.
func (s *Store) Get(ctx context.Context, bucket Bucket, key string, ttl time.Duration, fetch Fetcher) (Result, error) {
	s.metrics.Inc(metrics.CacheGetsTotal)

	now := time.Now()
	if ent, ok := s.lookup(bucket, key); ok && !ent.IsExpired(now) {
		s.metrics.Inc(metrics.CacheHitsTotal)
		return Result{Value: ent.Value, FetchedAt: ent.FetchedAt}, nil
	}

	s.metrics.Inc(metrics.CacheMissesTotal)

	flightKey := string(bucket) + "/" + key
	shared, err, _ := s.flight.Do(flightKey, func() (any, error) {
		// A coalesced waiter may find the entry already refreshed by
		// the flight it queued behind.
		if ent, ok := s.lookup(bucket, key); ok && !ent.IsExpired(time.Now()) {
			return Result{Value: ent.Value, FetchedAt: ent.FetchedAt}, nil
		}

		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		fetchedAt := time.Now()
		s.Put(bucket, key, value, ttl)
		return Result{Value: value, FetchedAt: fetchedAt}, nil
	})

	if err != nil {
		if ent, ok := s.lookup(bucket, key); ok {
			s.metrics.Inc(metrics.CacheStaleServedTotal)
			s.logger.Warnf("serving stale value for %s/%s after fetch failure: %v", bucket, key, err)
			return Result{Value: ent.Value, Stale: true, FetchedAt: ent.FetchedAt}, nil
		}
		return Result{}, err
	}

	return shared.(Result), nil
}

// Put inserts or replaces the entry for bucket/key.
func (s *Store) Put(bucket Bucket, key string, value any, ttl time.Duration) {
	now := time.Now()
	entry := Entry{
		Value:     value,
		FetchedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Inc(metrics.CacheSetsTotal)

	b, ok := s.buckets[bucket]
	if !ok {
		b = make(map[string]Entry)
		s.buckets[bucket] = b
	}
	b[key] = entry
}

// Peek returns the raw entry without touching metrics or fetchers.
func (s *Store) Peek(bucket Bucket, key string) (Entry, bool) {
	return s.lookup(bucket, key)
}

func (s *Store) lookup(bucket Bucket, key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.buckets[bucket]
	if !ok {
		return Entry{}, false
	}
	ent, ok := b[key]
	return ent, ok
}

// Invalidate removes one entry immediately. Subsequent gets re-fetch.
func (s *Store) Invalidate(bucket Bucket, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buckets[bucket]; ok {
		if _, exists := b[key]; exists {
			delete(b, key)
			s.metrics.Inc(metrics.CacheInvalidatedTotal)
		}
	}
}

// InvalidateBucket removes every entry in the bucket.
func (s *Store) InvalidateBucket(bucket Bucket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buckets[bucket]; ok {
		s.metrics.Add(metrics.CacheInvalidatedTotal, int64(len(b)))
		delete(s.buckets, bucket)
	}
}

// RemoveExpired removes all expired entries across buckets and returns
// how many were removed. Used by the background sweeper. An in-flight
// Get that already read an entry keeps its copy: entries are values,
// never shared pointers, so deletion cannot tear a read.
func (s *Store) RemoveExpired() int {
	now := time.Now()
	removed := 0

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.buckets {
		for key, ent := range b {
			if ent.IsExpired(now) {
				delete(b, key)
				removed++
			}
		}
	}
	return removed
}

// Len returns the total number of entries across all buckets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, b := range s.buckets {
		total += len(b)
	}
	return total
}
