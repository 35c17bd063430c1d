package cache

import (
	"context"
	"time"

	"lottery-view/internal/logs"
	"lottery-view/internal/metrics"
)

// Expirable is the minimal contract required by the sweeper, keeping it
// decoupled from the concrete store.
type Expirable interface {
	RemoveExpired() int
}

// Sweeper periodically removes expired entries from the store.
type Sweeper struct {
	store    Expirable
	interval time.Duration
	logger   *logs.Logger
	metrics  *metrics.Registry
}

// NewSweeper creates a sweeper.
func NewSweeper(
	store Expirable,
	interval time.Duration,
	logger *logs.Logger,
	reg *metrics.Registry,
) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		metrics:  reg,
	}
}

// Start runs the sweep loop until the context is cancelled.
// It blocks and should typically be run in a separate goroutine.
func (sw *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sw.runOnce()
		case <-ctx.Done():
			sw.logger.Debug("cache sweeper stopped")
			return
		}
	}
}

func (sw *Sweeper) runOnce() {
	sw.metrics.Inc(metrics.SweepRunsTotal)

	removed := sw.store.RemoveExpired()
	if removed > 0 {
		sw.metrics.Add(metrics.SweepKeysRemovedTotal, int64(removed))
		sw.logger.Infof("sweeper removed %d expired entries", removed)
	}
}
