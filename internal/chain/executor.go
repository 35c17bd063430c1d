package chain

import (
	"context"
	"fmt"
	"time"

	"lottery-view/internal/metrics"
)

// Operation is an idempotent remote read. Writes never go through the
// executor; they take the retrying submitter path instead.
type Operation func(ctx context.Context) (any, error)

// Executor bounds a single remote attempt with a hard deadline.
// It carries no retry policy: retry is the caller's decision.
type Executor struct {
	metrics *metrics.Registry
}

// NewExecutor creates an executor.
func NewExecutor(reg *metrics.Registry) *Executor {
	return &Executor{metrics: reg}
}

type opResult struct {
	value any
	err   error
}

// Execute races op against the deadline. If the deadline fires first
// the operation is abandoned: it may keep running until the derived
// context propagates cancellation, but its eventual result goes to a
// buffered channel nobody reads and can never reach the caller.
func (e *Executor) Execute(ctx context.Context, deadline time.Duration, op Operation) (any, error) {
	// A caller bug, not an endpoint problem: classified so it is never
	// retried and never counts against endpoint health.
	if deadline <= 0 {
		return nil, &CallError{
			Kind: KindUnknown,
			Op:   "execute",
			Err:  fmt.Errorf("deadline must be positive, got %v", deadline),
		}
	}

	e.metrics.Inc(metrics.RPCCallsTotal)

	opCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ch := make(chan opResult, 1)
	go func() {
		value, err := op(opCtx)
		ch <- opResult{value: value, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			kind := Classify(res.err)
			if kind == KindTimeout {
				e.metrics.Inc(metrics.RPCTimeoutsTotal)
			} else {
				e.metrics.Inc(metrics.RPCFailuresTotal)
			}
			return nil, &CallError{Kind: kind, Op: "execute", Err: res.err}
		}
		return res.value, nil
	case <-opCtx.Done():
		e.metrics.Inc(metrics.RPCTimeoutsTotal)
		return nil, &CallError{Kind: KindTimeout, Op: "execute", Err: opCtx.Err()}
	}
}
