package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"lottery-view/internal/logs"
	"lottery-view/internal/metrics"
	"lottery-view/internal/pricing"
)

// ApprovalState tracks the spend-approval lifecycle for the configured
// spender.
type ApprovalState int

const (
	Unapproved ApprovalState = iota
	PendingApproval
	Approved
)

func (s ApprovalState) String() string {
	switch s {
	case PendingApproval:
		return "pending_approval"
	case Approved:
		return "approved"
	default:
		return "unapproved"
	}
}

// Submitter drives the ledger write path: spend approvals and ticket
// purchases, each precondition-checked against live reads before any
// transaction is attempted, and retried on transient failure.
type Submitter struct {
	reader  Reader
	writer  Writer
	retry   RetryPolicy
	logger  *logs.Logger
	metrics *metrics.Registry

	mu    sync.Mutex
	state ApprovalState
}

// NewSubmitter creates a submitter in the Unapproved state.
func NewSubmitter(
	reader Reader,
	writer Writer,
	retry RetryPolicy,
	logger *logs.Logger,
	reg *metrics.Registry,
) *Submitter {
	return &Submitter{
		reader:  reader,
		writer:  writer,
		retry:   retry,
		logger:  logger,
		metrics: reg,
	}
}

// State returns the current approval lifecycle state.
func (s *Submitter) State() ApprovalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Submitter) setState(st ApprovalState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// counted wraps a submission so every attempt after the first is
// recorded as a retry.
func (s *Submitter) counted(fn func() error) func() error {
	attempts := 0
	return func() error {
		attempts++
		if attempts > 1 {
			s.metrics.Inc(metrics.SubmitRetriesTotal)
		}
		return fn()
	}
}

// ApproveSpend submits a spend approval for the given base-unit amount.
// The owner's balance must cover the amount before the approval call is
// attempted; a shortfall surfaces as ErrInsufficientBalance without any
// transaction being sent.
func (s *Submitter) ApproveSpend(ctx context.Context, owner, spender common.Address, amountBaseUnits string) error {
	amount, err := pricing.ParseBaseUnits(amountBaseUnits)
	if err != nil {
		return err
	}

	balance, err := s.reader.BalanceOf(ctx, owner)
	if err != nil {
		return fmt.Errorf("approval precondition: %w", err)
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s, approval needs %s",
			ErrInsufficientBalance, balance.String(), amount.String())
	}

	s.setState(PendingApproval)

	s.metrics.Inc(metrics.SubmitAttemptsTotal)
	// Setting an allowance is idempotent, so even a timed-out approval
	// is safe to resubmit.
	err = Retry(ctx, s.retry, s.counted(func() error {
		return s.writer.Approve(ctx, spender, amountBaseUnits)
	}))
	if err != nil {
		s.setState(Unapproved)
		s.logger.Errorf("approval of %s for %s failed: %v", amountBaseUnits, spender.Hex(), err)
		return err
	}

	s.setState(Approved)
	s.metrics.Inc(metrics.ApprovalsGrantedTotal)
	s.logger.Infof("approved %s base units for %s", amountBaseUnits, spender.Hex())
	return nil
}

// RevokeApproval requests exactly zero allowance, regardless of the
// prior amount, and returns the lifecycle to Unapproved.
func (s *Submitter) RevokeApproval(ctx context.Context, spender common.Address) error {
	err := Retry(ctx, s.retry, s.counted(func() error {
		return s.writer.Approve(ctx, spender, "0")
	}))
	if err != nil {
		return err
	}

	s.setState(Unapproved)
	s.metrics.Inc(metrics.ApprovalsRevokedTotal)
	s.logger.Infof("revoked approval for %s", spender.Hex())
	return nil
}

// EnsureAllowance verifies the current allowance covers the amount,
// returning ErrInsufficientAllowance otherwise.
func (s *Submitter) EnsureAllowance(ctx context.Context, owner, spender common.Address, amount *big.Int) error {
	allowance, err := s.reader.Allowance(ctx, owner, spender)
	if err != nil {
		return fmt.Errorf("allowance precondition: %w", err)
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: allowance %s, purchase needs %s",
			ErrInsufficientAllowance, allowance.String(), amount.String())
	}
	return nil
}

// BuyTickets submits a purchase for an already-computed calculation.
// Balance and allowance must both cover the final total; either
// shortfall surfaces before any transaction is attempted.
func (s *Submitter) BuyTickets(ctx context.Context, owner, spender common.Address, calc pricing.PriceCalculation, referrer common.Address) error {
	if !pricing.ValidatePriceCalculation(calc) {
		return &pricing.ValidationError{Field: "price calculation", Reason: "does not self-validate"}
	}

	balance, err := s.reader.BalanceOf(ctx, owner)
	if err != nil {
		return fmt.Errorf("purchase precondition: %w", err)
	}
	if balance.Cmp(calc.FinalTotal) < 0 {
		return fmt.Errorf("%w: balance %s, purchase needs %s",
			ErrInsufficientBalance, balance.String(), calc.TotalBaseUnits)
	}

	if err := s.EnsureAllowance(ctx, owner, spender, calc.FinalTotal); err != nil {
		return err
	}

	s.metrics.Inc(metrics.SubmitAttemptsTotal)
	// A purchase is not idempotent: a timed-out submission may already
	// have reached the gateway. Only network-level refusals are
	// retried; a timeout surfaces as unconfirmed for the caller to
	// verify before trying again.
	err = RetryIf(ctx, s.retry, func(err error) bool {
		return Classify(err) == KindTransient
	}, s.counted(func() error {
		return s.writer.BuyTickets(ctx, calc.TicketCount, referrer)
	}))
	if err != nil {
		if Classify(err) == KindTimeout {
			return fmt.Errorf("%w: %w", ErrPurchaseUnconfirmed, err)
		}
		return err
	}

	s.metrics.Inc(metrics.PurchasesSubmittedTotal)
	s.logger.Infof("purchased %d tickets for %s base units", calc.TicketCount, calc.TotalBaseUnits)
	return nil
}
