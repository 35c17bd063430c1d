package chain

import (
	"context"
	"time"
)

// RetryPolicy controls retry behavior for write submissions and full
// refresh cycles.
type RetryPolicy struct {
	MaxRetries  int           // max retry attempts after the first try
	BaseBackoff time.Duration // initial backoff duration
	MaxBackoff  time.Duration // upper bound on backoff
	JitterFn    func(time.Duration) time.Duration
}

// DefaultRetryPolicy returns the policy used by the submitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  3,
		BaseBackoff: 200 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
		JitterFn:    func(d time.Duration) time.Duration { return d / 2 },
	}
}

// Retry executes fn with exponential backoff and cancellation support.
//
// fn must return nil on success. Only recoverable errors (timeout,
// transient) are retried; validation failures, contract reverts and
// precondition errors surface immediately.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	return RetryIf(ctx, policy, Recoverable, fn)
}

// RetryIf is Retry with a caller-chosen predicate deciding which
// errors get another attempt. Non-idempotent submissions use it to
// exclude ambiguous outcomes such as timeouts.
func RetryIf(ctx context.Context, policy RetryPolicy, retryable func(error) bool, fn func() error) error {
	var attempt int
	backoff := policy.BaseBackoff

	for {
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}

		attempt++
		if attempt > policy.MaxRetries {
			return err
		}

		delay := backoff
		if policy.JitterFn != nil {
			delay += policy.JitterFn(backoff)
		}
		if delay > policy.MaxBackoff {
			delay = policy.MaxBackoff
		}

		select {
		case <-time.After(delay):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
