package health

import "lottery-view/internal/metrics"

// RuleResult represents the outcome of a single rule.
type RuleResult struct {
	Triggered      bool
	Signal         string
	Recommendation string
	Severity       Status
}

// Rule evaluates a metrics snapshot.
type Rule func(snapshot map[string]int64) RuleResult

// Stale serves mean reads are falling back to expired cache entries.
func StaleServeRule(snapshot map[string]int64) RuleResult {
	stale := snapshot[string(metrics.CacheStaleServedTotal)]

	if stale > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Stale cache values are being served",
			Recommendation: "Check RPC endpoint reachability; displayed data may lag the ledger",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

// Timeouts indicate the configured deadline is being hit.
func TimeoutRule(snapshot map[string]int64) RuleResult {
	timeouts := snapshot[string(metrics.RPCTimeoutsTotal)]

	if timeouts > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "RPC calls are timing out",
			Recommendation: "Inspect endpoint latency or raise the call deadline",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

// Unhealthy endpoints indicate the ledger may be unreachable.
func EndpointUnhealthyRule(snapshot map[string]int64) RuleResult {
	unhealthy := snapshot[string(metrics.EndpointsUnhealthy)]

	if unhealthy > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "One or more RPC endpoints are unhealthy",
			Recommendation: "Verify endpoint URLs and provider status",
			Severity:       StatusCritical,
		}
	}
	return RuleResult{}
}

// Failed refresh cycles mean the whole critical set is unreadable.
func RefreshFailureRule(snapshot map[string]int64) RuleResult {
	failures := snapshot[string(metrics.RefreshFailuresTotal)]

	if failures > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Full refresh cycles are failing",
			Recommendation: "Check network connectivity; the view is running on cached data only",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}
