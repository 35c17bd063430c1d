package metrics

import (
	"sync"
	"sync/atomic"
)

// MetricKey is a strongly typed metric identifier.
type MetricKey string

// Metric keys (centralized)
const (
	// Cache
	CacheGetsTotal        MetricKey = "cache_gets_total"
	CacheHitsTotal        MetricKey = "cache_hits_total"
	CacheMissesTotal      MetricKey = "cache_misses_total"
	CacheSetsTotal        MetricKey = "cache_sets_total"
	CacheStaleServedTotal MetricKey = "cache_stale_served_total"
	CacheInvalidatedTotal MetricKey = "cache_invalidated_total"

	// Sweep
	SweepRunsTotal        MetricKey = "sweep_runs_total"
	SweepKeysRemovedTotal MetricKey = "sweep_keys_removed_total"

	// RPC
	RPCCallsTotal           MetricKey = "rpc_calls_total"
	RPCTimeoutsTotal        MetricKey = "rpc_timeouts_total"
	RPCFailuresTotal        MetricKey = "rpc_failures_total"
	RPCInvalidReplyTotal    MetricKey = "rpc_invalid_reply_total"
	EndpointsHealthy        MetricKey = "endpoints_healthy"
	EndpointsUnhealthy      MetricKey = "endpoints_unhealthy"
	EndpointFailuresTotal   MetricKey = "endpoint_failures_total"
	SubmitAttemptsTotal     MetricKey = "submit_attempts_total"
	SubmitRetriesTotal      MetricKey = "submit_retries_total"
	ApprovalsGrantedTotal   MetricKey = "approvals_granted_total"
	ApprovalsRevokedTotal   MetricKey = "approvals_revoked_total"
	PurchasesSubmittedTotal MetricKey = "purchases_submitted_total"

	// Refresh orchestration
	RefreshRunsTotal     MetricKey = "refresh_runs_total"
	RefreshFailuresTotal MetricKey = "refresh_failures_total"
	RefreshRetriesTotal  MetricKey = "refresh_retries_total"

	// Pricing
	QuotesComputedTotal MetricKey = "quotes_computed_total"
	QuotesRejectedTotal MetricKey = "quotes_rejected_total"
)

// Registry stores all metrics.
type Registry struct {
	mu       sync.RWMutex
	counters map[MetricKey]*int64
}

// NewRegistry creates a metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[MetricKey]*int64),
	}
}

// Inc increments a metric by 1.
func (r *Registry) Inc(key MetricKey) {
	r.Add(key, 1)
}

// Add increments a metric by delta.
func (r *Registry) Add(key MetricKey, delta int64) {
	r.mu.RLock()
	ptr, ok := r.counters[key]
	r.mu.RUnlock()

	if ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	// Slow path: metric not yet initialized
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if ptr, ok = r.counters[key]; ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	var val int64
	r.counters[key] = &val
	atomic.AddInt64(&val, delta)
}

// Get returns the current value of a single metric.
func (r *Registry) Get(key MetricKey) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ptr, ok := r.counters[key]; ok {
		return atomic.LoadInt64(ptr)
	}
	return 0
}
