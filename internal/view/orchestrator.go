package view

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lottery-view/internal/cache"
	"lottery-view/internal/chain"
	"lottery-view/internal/logs"
	"lottery-view/internal/metrics"
	"lottery-view/internal/pricing"
)

// Cache keys for the critical set.
const (
	keyPool        = "current_pool"
	keyJackpot     = "accumulated_jackpot"
	keyTicketPrice = "ticket_price"
	keyCountdown   = "time_until_draw"
	keyTiers       = "discount_tiers"
	keyReferral    = "referral_info"
)

// Positions within the critical-set batch.
const (
	idxPool = iota
	idxJackpot
	idxTicketPrice
	idxCountdown
	idxTiers
	idxReferral
	criticalSetSize
)

// ErrRefreshFailed is returned when a refresh cycle produced no usable
// value for any field.
var ErrRefreshFailed = errors.New("refresh cycle failed entirely")

// Orchestrator composes the cache, the ledger client and the pricing
// engine into a unified view model, and drives the periodic and
// countdown-triggered refresh cycle.
type Orchestrator struct {
	reader  chain.Reader
	store   *cache.Store
	cfg     Config
	player  common.Address
	logger  *logs.Logger
	metrics *metrics.Registry

	mu      sync.RWMutex
	current *ViewModel

	// countdown ticks down locally each second for display; it is
	// reset from the freshly read ledger value on every refresh so it
	// cannot drift from the actual draw schedule.
	countdown atomic.Int64
}

// NewOrchestrator creates an orchestrator with an all-loading model.
func NewOrchestrator(
	reader chain.Reader,
	store *cache.Store,
	cfg Config,
	player common.Address,
	logger *logs.Logger,
	reg *metrics.Registry,
) *Orchestrator {
	return &Orchestrator{
		reader:  reader,
		store:   store,
		cfg:     cfg,
		player:  player,
		logger:  logger,
		metrics: reg,
		current: emptyViewModel(),
	}
}

// Snapshot returns a copy of the current view model with the live
// countdown value. Consumers can hold it without synchronization.
func (o *Orchestrator) Snapshot() ViewModel {
	o.mu.RLock()
	vm := *o.current
	o.mu.RUnlock()

	if vm.Countdown.Status != FieldLoading {
		secs := o.countdown.Load()
		if secs < 0 {
			secs = 0
		}
		vm.Countdown.Seconds = secs
	}
	return vm
}

func (o *Orchestrator) criticalSet() []cache.Request {
	return []cache.Request{
		idxPool: {
			Bucket: cache.BucketPrizes, Key: keyPool, TTL: o.cfg.TTL.Fast,
			Fetch: func(ctx context.Context) (any, error) { return o.reader.CurrentPool(ctx) },
		},
		idxJackpot: {
			Bucket: cache.BucketPrizes, Key: keyJackpot, TTL: o.cfg.TTL.Fast,
			Fetch: func(ctx context.Context) (any, error) { return o.reader.AccumulatedJackpot(ctx) },
		},
		idxTicketPrice: {
			Bucket: cache.BucketScalars, Key: keyTicketPrice, TTL: o.cfg.TTL.Slow,
			Fetch: func(ctx context.Context) (any, error) { return o.reader.TicketPrice(ctx) },
		},
		idxCountdown: {
			Bucket: cache.BucketDraws, Key: keyCountdown, TTL: o.cfg.TTL.Fast,
			Fetch: func(ctx context.Context) (any, error) { return o.reader.TimeUntilNextDraw(ctx) },
		},
		idxTiers: {
			Bucket: cache.BucketScalars, Key: keyTiers, TTL: o.cfg.TTL.Slow,
			Fetch: func(ctx context.Context) (any, error) { return o.reader.DiscountTiers(ctx) },
		},
		idxReferral: {
			Bucket: cache.BucketScalars, Key: keyReferral, TTL: o.cfg.TTL.Slow,
			Fetch: func(ctx context.Context) (any, error) { return o.reader.ReferralInfo(ctx, o.player) },
		},
	}
}

// Refresh fetches the critical set through the cache, assembles a new
// view model and swaps it in atomically. Fields whose read failed keep
// their previous value labeled stale, or stay loading if no value was
// ever fetched. Returns ErrRefreshFailed only when no field produced a
// usable value.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	o.metrics.Inc(metrics.RefreshRunsTotal)

	results := o.store.BatchFetch(ctx, o.criticalSet())

	o.mu.RLock()
	prev := *o.current
	o.mu.RUnlock()

	next := &ViewModel{GeneratedAt: time.Now()}

	next.Pool = o.amountField(results[idxPool], prev.Pool)
	next.Jackpot = o.amountField(results[idxJackpot], prev.Jackpot)
	next.TicketPrice = o.amountField(results[idxTicketPrice], prev.TicketPrice)
	next.Countdown = o.countdownField(results[idxCountdown], prev.Countdown)
	next.Tiers = o.tiersField(results[idxTiers], prev.Tiers)
	next.Referral = o.referralField(results[idxReferral], prev.Referral)

	o.mu.Lock()
	o.current = next
	o.mu.Unlock()

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed == criticalSetSize {
		o.metrics.Inc(metrics.RefreshFailuresTotal)
		return fmt.Errorf("%w: %v", ErrRefreshFailed, results[idxPool].Err)
	}
	return nil
}

func (o *Orchestrator) amountField(res cache.BatchResult, prev AmountField) AmountField {
	if res.Err != nil {
		return degradedAmount(prev)
	}
	v, ok := res.Value.(*big.Int)
	if !ok {
		return degradedAmount(prev)
	}

	status := FieldFresh
	if res.Stale {
		status = FieldStale
	}
	return AmountField{
		Raw:     v.String(),
		Display: pricing.FormatBaseUnits(v),
		Status:  status,
	}
}

func degradedAmount(prev AmountField) AmountField {
	if prev.Status == FieldLoading {
		return AmountField{Status: FieldLoading}
	}
	prev.Status = FieldStale
	return prev
}

func (o *Orchestrator) countdownField(res cache.BatchResult, prev CountdownField) CountdownField {
	if res.Err != nil {
		if prev.Status == FieldLoading {
			return CountdownField{Status: FieldLoading}
		}
		prev.Status = FieldStale
		return prev
	}
	secs, ok := res.Value.(int64)
	if !ok {
		return prev
	}

	// Only a non-stale read resets the local countdown; resetting from
	// a stale value would reintroduce the drift the reset exists to
	// prevent.
	status := FieldFresh
	if res.Stale {
		status = FieldStale
	} else {
		o.countdown.Store(secs)
	}
	return CountdownField{Seconds: secs, Status: status}
}

func (o *Orchestrator) tiersField(res cache.BatchResult, prev TiersField) TiersField {
	if res.Err != nil {
		if prev.Status == FieldLoading {
			return TiersField{Status: FieldLoading}
		}
		prev.Status = FieldStale
		return prev
	}
	tiers, ok := res.Value.([]pricing.Tier)
	if !ok {
		return prev
	}

	status := FieldFresh
	if res.Stale {
		status = FieldStale
	}
	return TiersField{Tiers: tiers, Status: status}
}

func (o *Orchestrator) referralField(res cache.BatchResult, prev ReferralField) ReferralField {
	if res.Err != nil {
		if prev.Status == FieldLoading {
			return ReferralField{Status: FieldLoading}
		}
		prev.Status = FieldStale
		return prev
	}
	ref, ok := res.Value.(pricing.ReferralState)
	if !ok {
		return prev
	}

	status := FieldFresh
	if res.Stale {
		status = FieldStale
	}
	return ReferralField{
		TotalReferrals:     ref.TotalReferrals,
		DiscountPercent:    ref.CurrentDiscount(),
		MaxDiscountPercent: ref.MaxDiscount,
		Status:             status,
	}
}

// Run drives the countdown tick and the refresh cycle until the
// context is cancelled. The first refresh happens immediately; after a
// failed cycle the next attempt is scheduled with a doubling, capped
// delay instead of the steady interval.
func (o *Orchestrator) Run(ctx context.Context) {
	backoff := o.cfg.Refresh.RetryShort
	nextRefresh := o.refreshOnce(ctx, &backoff)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Debug("orchestrator stopped")
			return
		case <-ticker.C:
			due := !time.Now().Before(nextRefresh)
			// The countdown only decrements while positive; hitting
			// zero triggers exactly one refresh, which resets it from
			// the freshly read ledger value.
			if o.countdown.Load() > 0 && o.countdown.Add(-1) == 0 {
				due = true
			}
			if !due {
				continue
			}
			nextRefresh = o.refreshOnce(ctx, &backoff)
		}
	}
}

// refreshOnce runs one refresh and returns when the next one is due.
func (o *Orchestrator) refreshOnce(ctx context.Context, backoff *time.Duration) time.Time {
	if err := o.Refresh(ctx); err != nil {
		o.metrics.Inc(metrics.RefreshRetriesTotal)
		o.logger.Warnf("refresh failed, retrying in %v: %v", *backoff, err)

		next := time.Now().Add(*backoff)
		*backoff *= 2
		if *backoff > o.cfg.Refresh.RetryMax {
			*backoff = o.cfg.Refresh.RetryMax
		}
		return next
	}

	*backoff = o.cfg.Refresh.RetryShort
	return time.Now().Add(o.cfg.Refresh.Interval)
}

// Quote computes a price breakdown for ticketCount using the cached
// price, tier table and referral state. Validation failures surface
// before any remote call is attempted.
func (o *Orchestrator) Quote(ctx context.Context, ticketCount int64) (pricing.PriceCalculation, error) {
	if ticketCount <= 0 {
		o.metrics.Inc(metrics.QuotesRejectedTotal)
		return pricing.PriceCalculation{}, &pricing.ValidationError{Field: "ticket count", Reason: "must be positive"}
	}

	set := o.criticalSet()

	priceRes, err := o.store.Get(ctx, cache.BucketScalars, keyTicketPrice, o.cfg.TTL.Slow, set[idxTicketPrice].Fetch)
	if err != nil {
		o.metrics.Inc(metrics.QuotesRejectedTotal)
		return pricing.PriceCalculation{}, err
	}
	tiersRes, err := o.store.Get(ctx, cache.BucketScalars, keyTiers, o.cfg.TTL.Slow, set[idxTiers].Fetch)
	if err != nil {
		o.metrics.Inc(metrics.QuotesRejectedTotal)
		return pricing.PriceCalculation{}, err
	}
	refRes, err := o.store.Get(ctx, cache.BucketScalars, keyReferral, o.cfg.TTL.Slow, set[idxReferral].Fetch)
	if err != nil {
		o.metrics.Inc(metrics.QuotesRejectedTotal)
		return pricing.PriceCalculation{}, err
	}

	price, ok := priceRes.Value.(*big.Int)
	if !ok {
		o.metrics.Inc(metrics.QuotesRejectedTotal)
		return pricing.PriceCalculation{}, fmt.Errorf("cached ticket price: unexpected type %T", priceRes.Value)
	}
	tiers, ok := tiersRes.Value.([]pricing.Tier)
	if !ok {
		o.metrics.Inc(metrics.QuotesRejectedTotal)
		return pricing.PriceCalculation{}, fmt.Errorf("cached tier table: unexpected type %T", tiersRes.Value)
	}
	referral, ok := refRes.Value.(pricing.ReferralState)
	if !ok {
		o.metrics.Inc(metrics.QuotesRejectedTotal)
		return pricing.PriceCalculation{}, fmt.Errorf("cached referral state: unexpected type %T", refRes.Value)
	}

	calc, err := pricing.CalculatePrice(ticketCount, price, tiers, referral.CurrentDiscount())
	if err != nil {
		o.metrics.Inc(metrics.QuotesRejectedTotal)
		return pricing.PriceCalculation{}, err
	}

	o.metrics.Inc(metrics.QuotesComputedTotal)
	return calc, nil
}

// TicketPriceNow returns the (possibly cached) unit price for approval
// amount computation.
func (o *Orchestrator) TicketPriceNow(ctx context.Context) (*big.Int, error) {
	set := o.criticalSet()
	res, err := o.store.Get(ctx, cache.BucketScalars, keyTicketPrice, o.cfg.TTL.Slow, set[idxTicketPrice].Fetch)
	if err != nil {
		return nil, err
	}
	price, ok := res.Value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("cached ticket price: unexpected type %T", res.Value)
	}
	return price, nil
}

// Winners returns the winner list for a settled draw and tier. Settled
// results never change, so they cache with the long winners TTL.
func (o *Orchestrator) Winners(ctx context.Context, drawID uint64, tier uint8) ([]common.Address, error) {
	key := fmt.Sprintf("%d/%d", drawID, tier)
	res, err := o.store.Get(ctx, cache.BucketWinners, key, o.cfg.TTL.Winners, func(ctx context.Context) (any, error) {
		return o.reader.Winners(ctx, drawID, tier)
	})
	if err != nil {
		return nil, err
	}
	winners, ok := res.Value.([]common.Address)
	if !ok {
		return nil, fmt.Errorf("cached winner list: unexpected type %T", res.Value)
	}
	return winners, nil
}

// InvalidateAfterPurchase drops the keys whose values change once a
// purchase lands, forcing the next read back to the ledger.
func (o *Orchestrator) InvalidateAfterPurchase() {
	o.store.Invalidate(cache.BucketPrizes, keyPool)
	o.store.Invalidate(cache.BucketPrizes, keyJackpot)
	o.store.InvalidateBucket(cache.BucketDraws)
	o.store.Invalidate(cache.BucketScalars, keyReferral)
}
