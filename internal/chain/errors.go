package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a failed ledger interaction. Classification
// happens once, at the RPC boundary, so callers never re-inspect
// transport errors.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindTimeout: the call lost the race against its deadline.
	KindTimeout
	// KindTransient: network-level failure likely to clear on retry.
	KindTransient
	// KindInvalidResponse: the contract reverted or returned a reply
	// that failed strict parsing. Not retryable.
	KindInvalidResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTransient:
		return "transient"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// User-actionable preconditions surfaced before any write is submitted.
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNoEndpoints           = errors.New("no RPC endpoints configured")

	// ErrPurchaseUnconfirmed marks a purchase whose submission timed
	// out: the transaction may still have reached the gateway, so the
	// caller must verify before submitting again.
	ErrPurchaseUnconfirmed = errors.New("purchase unconfirmed")
)

// CallError wraps a failed remote call with its classification and the
// logical operation that failed.
type CallError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *CallError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Classify maps an arbitrary error to an ErrorKind. Already-classified
// errors keep their kind; everything else falls back to transient,
// matching the degraded-mode policy of treating unknown failures as
// recoverable via stale cache and retry.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}

	return KindTransient
}

// Recoverable reports whether the cache's stale fallback and the
// orchestrator's scheduled retry are allowed to absorb this error.
func Recoverable(err error) bool {
	switch Classify(err) {
	case KindTimeout, KindTransient:
		return true
	default:
		return false
	}
}
