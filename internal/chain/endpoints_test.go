package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lottery-view/internal/metrics"
)

func newTestPool() (*EndpointPool, *metrics.Registry) {
	reg := metrics.NewRegistry()
	return NewEndpointPool(HealthPolicy{FailureThreshold: 2, SuccessThreshold: 2}, reg), reg
}

func TestEndpointPool_PickPrefersHealthyInOrder(t *testing.T) {
	pool, _ := newTestPool()
	pool.Add("https://primary")
	pool.Add("https://secondary")

	url, err := pool.Pick()
	require.NoError(t, err)
	assert.Equal(t, "https://primary", url)

	pool.MarkFailure("https://primary")
	pool.MarkFailure("https://primary")

	url, err = pool.Pick()
	require.NoError(t, err)
	assert.Equal(t, "https://secondary", url, "unhealthy primary should be skipped")
}

func TestEndpointPool_PickFallsBackWhenAllUnhealthy(t *testing.T) {
	pool, _ := newTestPool()
	pool.Add("https://only")

	pool.MarkFailure("https://only")
	pool.MarkFailure("https://only")
	assert.False(t, pool.IsHealthy("https://only"))

	url, err := pool.Pick()
	require.NoError(t, err)
	assert.Equal(t, "https://only", url, "an unhealthy endpoint is still better than no call")
}

func TestEndpointPool_PickEmpty(t *testing.T) {
	pool, _ := newTestPool()

	_, err := pool.Pick()
	assert.ErrorIs(t, err, ErrNoEndpoints)
}

func TestEndpointPool_FailureThreshold(t *testing.T) {
	pool, reg := newTestPool()
	pool.Add("https://node")

	pool.MarkFailure("https://node")
	assert.True(t, pool.IsHealthy("https://node"), "one failure below threshold keeps it healthy")

	pool.MarkFailure("https://node")
	assert.False(t, pool.IsHealthy("https://node"))

	assert.Equal(t, int64(1), reg.Get(metrics.EndpointsUnhealthy))
	assert.Equal(t, int64(0), reg.Get(metrics.EndpointsHealthy))
}

func TestEndpointPool_RecoveryThreshold(t *testing.T) {
	pool, reg := newTestPool()
	pool.Add("https://node")

	pool.MarkFailure("https://node")
	pool.MarkFailure("https://node")
	require.False(t, pool.IsHealthy("https://node"))

	pool.MarkSuccess("https://node")
	assert.False(t, pool.IsHealthy("https://node"), "one success below threshold is not recovery")

	pool.MarkSuccess("https://node")
	assert.True(t, pool.IsHealthy("https://node"))

	assert.Equal(t, int64(1), reg.Get(metrics.EndpointsHealthy))
	assert.Equal(t, int64(0), reg.Get(metrics.EndpointsUnhealthy))
}

func TestEndpointPool_SuccessResetsFailureStreak(t *testing.T) {
	pool, _ := newTestPool()
	pool.Add("https://node")

	pool.MarkFailure("https://node")
	pool.MarkSuccess("https://node")
	pool.MarkFailure("https://node")

	assert.True(t, pool.IsHealthy("https://node"), "non-consecutive failures must not trip the threshold")
}

func TestEndpointPool_UnknownURLIgnored(t *testing.T) {
	pool, _ := newTestPool()
	pool.MarkFailure("https://never-added")
	pool.MarkSuccess("https://never-added")
	assert.False(t, pool.IsHealthy("https://never-added"))
}

func TestEndpointPool_Snapshot(t *testing.T) {
	pool, _ := newTestPool()
	pool.Add("https://a")
	pool.Add("https://b")
	pool.MarkFailure("https://b")

	snap := pool.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "https://a", snap[0].URL)
	assert.Equal(t, "https://b", snap[1].URL)
	assert.Equal(t, 1, snap[1].FailureCount)
}
