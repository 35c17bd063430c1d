package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lottery-view/internal/logs"
	"lottery-view/internal/metrics"
)

func newTestStore() (*Store, *metrics.Registry, *logs.Logger) {
	logger := logs.NewLogger(100, logs.DEBUG)
	reg := metrics.NewRegistry()
	return NewStore(logger, reg), reg, logger
}

func constFetcher(v any) Fetcher {
	return func(ctx context.Context) (any, error) { return v, nil }
}

func failingFetcher(err error) Fetcher {
	return func(ctx context.Context) (any, error) { return nil, err }
}

func TestStoreGet_FetchesOnMissAndCaches(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "pool-value", nil
	}

	res, err := store.Get(ctx, BucketPrizes, "pool", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "pool-value", res.Value)
	assert.False(t, res.Stale)
	assert.Equal(t, int32(1), calls.Load())

	// Within the TTL the fetcher must not run again.
	res, err = store.Get(ctx, BucketPrizes, "pool", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "pool-value", res.Value)
	assert.Equal(t, int32(1), calls.Load(), "second get within TTL must be served from cache")
}

func TestStoreGet_RefetchesAfterExpiry(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return calls.Load(), nil
	}

	res, err := store.Get(ctx, BucketScalars, "price", 10*time.Millisecond, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(1), res.Value)

	time.Sleep(20 * time.Millisecond)

	res, err = store.Get(ctx, BucketScalars, "price", 10*time.Millisecond, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), res.Value, "expired entry must be refreshed")
	assert.False(t, res.Stale)
}

func TestStoreGet_StaleFallbackOnError(t *testing.T) {
	store, reg, logger := newTestStore()
	ctx := context.Background()

	_, err := store.Get(ctx, BucketPrizes, "jackpot", 10*time.Millisecond, constFetcher("old-jackpot"))
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	res, err := store.Get(ctx, BucketPrizes, "jackpot", 10*time.Millisecond, failingFetcher(errors.New("rpc down")))
	require.NoError(t, err, "a prior entry must absorb the fetch failure")
	assert.Equal(t, "old-jackpot", res.Value)
	assert.True(t, res.Stale)

	assert.Equal(t, int64(1), reg.Get(metrics.CacheStaleServedTotal))

	entries := logger.GetLast(1)
	require.Len(t, entries, 1)
	assert.Equal(t, logs.WARN, entries[0].Level)
	assert.Contains(t, entries[0].Message, "serving stale value")
}

func TestStoreGet_NoFallbackWithoutPriorSuccess(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	fetchErr := errors.New("rpc down")
	_, err := store.Get(ctx, BucketPrizes, "never-fetched", time.Minute, failingFetcher(fetchErr))
	require.Error(t, err)
	assert.ErrorIs(t, err, fetchErr)
}

func TestStoreGet_ConcurrentMissesAreDeduplicated(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const waiters = 10
	var wg sync.WaitGroup
	results := make([]Result, waiters)

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := store.Get(ctx, BucketScalars, "hot-key", time.Minute, fetch)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	// Let all goroutines pile up on the same key, then release.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent misses for one key should trigger one fetch")
	for _, res := range results {
		assert.Equal(t, "shared", res.Value)
	}
}

func TestStoreInvalidate(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "v", nil
	}

	_, err := store.Get(ctx, BucketDraws, "countdown", time.Minute, fetch)
	require.NoError(t, err)

	store.Invalidate(BucketDraws, "countdown")

	_, ok := store.Peek(BucketDraws, "countdown")
	assert.False(t, ok)

	_, err = store.Get(ctx, BucketDraws, "countdown", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "get after invalidation must re-fetch")
}

func TestStoreInvalidateBucket(t *testing.T) {
	store, _, _ := newTestStore()

	store.Put(BucketWinners, "1/1", []string{"a"}, time.Minute)
	store.Put(BucketWinners, "1/2", []string{"b"}, time.Minute)
	store.Put(BucketPrizes, "pool", "p", time.Minute)

	store.InvalidateBucket(BucketWinners)

	_, ok := store.Peek(BucketWinners, "1/1")
	assert.False(t, ok)
	_, ok = store.Peek(BucketWinners, "1/2")
	assert.False(t, ok)

	_, ok = store.Peek(BucketPrizes, "pool")
	assert.True(t, ok, "other buckets must be untouched")
}

func TestStoreRemoveExpired(t *testing.T) {
	store, _, _ := newTestStore()

	store.Put(BucketPrizes, "gone", "v1", -time.Second)
	store.Put(BucketPrizes, "alive", "v2", time.Minute)
	store.Put(BucketScalars, "also-gone", "v3", -time.Second)

	removed := store.RemoveExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, store.Len())

	_, ok := store.Peek(BucketPrizes, "alive")
	assert.True(t, ok)
}

func TestStoreEntryInvariant_FetchedBeforeExpiry(t *testing.T) {
	store, _, _ := newTestStore()

	store.Put(BucketScalars, "k", "v", time.Minute)

	ent, ok := store.Peek(BucketScalars, "k")
	require.True(t, ok)
	assert.False(t, ent.FetchedAt.After(ent.ExpiresAt), "fetchedAt must not exceed expiresAt")
}
