package view

import "time"

// TTLPolicy groups per-category TTLs. Slow-changing scalars (ticket
// price, discount tiers, referral params) hold for minutes;
// fast-changing values (pool size, time to next draw) only for seconds.
type TTLPolicy struct {
	Slow time.Duration
	Fast time.Duration
	// Winners of a settled draw never change; they get a long TTL.
	Winners time.Duration
}

// RefreshPolicy controls the orchestrator's refresh cycle.
type RefreshPolicy struct {
	Interval   time.Duration // steady-state gap between full refreshes
	RetryShort time.Duration // first retry delay after a failed refresh
	RetryMax   time.Duration // cap for the doubling retry delay
}

// Config collects the orchestrator's tunables.
type Config struct {
	TTL           TTLPolicy
	Refresh       RefreshPolicy
	SweepInterval time.Duration
	CallDeadline  time.Duration
}

// DefaultConfig returns the tunables observed to work against public
// RPC endpoints.
func DefaultConfig() Config {
	return Config{
		TTL: TTLPolicy{
			Slow:    5 * time.Minute,
			Fast:    15 * time.Second,
			Winners: time.Hour,
		},
		Refresh: RefreshPolicy{
			Interval:   30 * time.Second,
			RetryShort: 5 * time.Second,
			RetryMax:   time.Minute,
		},
		SweepInterval: time.Minute,
		CallDeadline:  10 * time.Second,
	}
}
