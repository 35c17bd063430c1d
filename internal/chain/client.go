package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lottery-view/internal/logs"
	"lottery-view/internal/metrics"
	"lottery-view/internal/pricing"
)

// Reader is the ledger's read surface. All amounts are unsigned
// integers in 18-decimal base units unless noted.
type Reader interface {
	CurrentPool(ctx context.Context) (*big.Int, error)
	AccumulatedJackpot(ctx context.Context) (*big.Int, error)
	TicketPrice(ctx context.Context) (*big.Int, error)
	// TimeUntilNextDraw returns seconds, not base units.
	TimeUntilNextDraw(ctx context.Context) (int64, error)
	DiscountTiers(ctx context.Context) ([]pricing.Tier, error)
	ReferralInfo(ctx context.Context, player common.Address) (pricing.ReferralState, error)
	Winners(ctx context.Context, drawID uint64, tier uint8) ([]common.Address, error)
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
}

// Writer is the ledger's write surface. Amounts are base-unit integer
// strings produced by the pricing engine; signing happens downstream.
// A write is a single bounded attempt whose outcome is always
// observed, never raced against a deadline and abandoned.
type Writer interface {
	Approve(ctx context.Context, spender common.Address, amountBaseUnits string) error
	BuyTickets(ctx context.Context, ticketCount int64, referrer common.Address) error
}

// Transport performs one raw call against one endpoint and returns the
// loosely-typed reply. Implementations do not retry and do not parse.
type Transport interface {
	Call(ctx context.Context, endpoint, method string, params ...any) (any, error)
}

// Client implements Reader and Writer over a Transport, with endpoint
// failover and deadline-bounded execution. Replies are coerced into
// strict values here, before anything reaches the cache.
type Client struct {
	transport Transport
	pool      *EndpointPool
	executor  *Executor
	deadline  time.Duration
	logger    *logs.Logger
	metrics   *metrics.Registry
}

// NewClient creates a ledger client.
func NewClient(
	transport Transport,
	pool *EndpointPool,
	deadline time.Duration,
	logger *logs.Logger,
	reg *metrics.Registry,
) *Client {
	return &Client{
		transport: transport,
		pool:      pool,
		executor:  NewExecutor(reg),
		deadline:  deadline,
		logger:    logger,
		metrics:   reg,
	}
}

func (c *Client) call(ctx context.Context, method string, params ...any) (any, error) {
	endpoint, err := c.pool.Pick()
	if err != nil {
		return nil, err
	}

	reply, err := c.executor.Execute(ctx, c.deadline, func(ctx context.Context) (any, error) {
		return c.transport.Call(ctx, endpoint, method, params...)
	})
	if err != nil {
		// Reverts and malformed replies reflect contract state, not
		// endpoint health; only network-level failures count against
		// the endpoint.
		if Recoverable(err) {
			c.pool.MarkFailure(endpoint)
		}
		c.logger.Warnf("%s via %s failed: %v", method, endpoint, err)
		return nil, err
	}

	c.pool.MarkSuccess(endpoint)
	return reply, nil
}

// submit performs one write attempt. Writes are not idempotent, so
// they never take the executor's deadline race: a submission that
// already reached the gateway must have its outcome observed, not
// abandoned. The deadline bounds the attempt through context
// cancellation alone.
func (c *Client) submit(ctx context.Context, method string, params ...any) error {
	endpoint, err := c.pool.Pick()
	if err != nil {
		return err
	}

	c.metrics.Inc(metrics.RPCCallsTotal)

	callCtx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	if _, err := c.transport.Call(callCtx, endpoint, method, params...); err != nil {
		kind := Classify(err)
		if kind == KindTimeout {
			c.metrics.Inc(metrics.RPCTimeoutsTotal)
		} else {
			c.metrics.Inc(metrics.RPCFailuresTotal)
		}
		if Recoverable(err) {
			c.pool.MarkFailure(endpoint)
		}
		c.logger.Warnf("%s via %s failed: %v", method, endpoint, err)

		var ce *CallError
		if !errors.As(err, &ce) {
			err = &CallError{Kind: kind, Op: method, Err: err}
		}
		return err
	}

	c.pool.MarkSuccess(endpoint)
	return nil
}

// invalid counts a reply that failed strict coercion.
func (c *Client) invalid(err error) error {
	if err != nil {
		c.metrics.Inc(metrics.RPCInvalidReplyTotal)
	}
	return err
}

func (c *Client) CurrentPool(ctx context.Context) (*big.Int, error) {
	reply, err := c.call(ctx, "getCurrentPool")
	if err != nil {
		return nil, err
	}
	n, err := ParseBigInt("getCurrentPool", reply)
	return n, c.invalid(err)
}

func (c *Client) AccumulatedJackpot(ctx context.Context) (*big.Int, error) {
	reply, err := c.call(ctx, "getAccumulatedJackpot")
	if err != nil {
		return nil, err
	}
	n, err := ParseBigInt("getAccumulatedJackpot", reply)
	return n, c.invalid(err)
}

func (c *Client) TicketPrice(ctx context.Context) (*big.Int, error) {
	reply, err := c.call(ctx, "getTicketPrice")
	if err != nil {
		return nil, err
	}
	n, err := ParseBigInt("getTicketPrice", reply)
	return n, c.invalid(err)
}

func (c *Client) TimeUntilNextDraw(ctx context.Context) (int64, error) {
	reply, err := c.call(ctx, "getTimeUntilNextDraw")
	if err != nil {
		return 0, err
	}
	n, err := ParseInt64("getTimeUntilNextDraw", reply)
	return n, c.invalid(err)
}

func (c *Client) DiscountTiers(ctx context.Context) ([]pricing.Tier, error) {
	reply, err := c.call(ctx, "getDiscountTiers")
	if err != nil {
		return nil, err
	}
	tiers, err := ParseTiers("getDiscountTiers", reply)
	return tiers, c.invalid(err)
}

func (c *Client) ReferralInfo(ctx context.Context, player common.Address) (pricing.ReferralState, error) {
	reply, err := c.call(ctx, "getReferralInfo", player.Hex())
	if err != nil {
		return pricing.ReferralState{}, err
	}
	ref, err := ParseReferral("getReferralInfo", reply)
	return ref, c.invalid(err)
}

func (c *Client) Winners(ctx context.Context, drawID uint64, tier uint8) ([]common.Address, error) {
	reply, err := c.call(ctx, "getWinners", drawID, tier)
	if err != nil {
		return nil, err
	}
	addrs, err := ParseAddresses("getWinners", reply)
	return addrs, c.invalid(err)
}

func (c *Client) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	reply, err := c.call(ctx, "balanceOf", owner.Hex())
	if err != nil {
		return nil, err
	}
	n, err := ParseBigInt("balanceOf", reply)
	return n, c.invalid(err)
}

func (c *Client) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	reply, err := c.call(ctx, "allowance", owner.Hex(), spender.Hex())
	if err != nil {
		return nil, err
	}
	n, err := ParseBigInt("allowance", reply)
	return n, c.invalid(err)
}

func (c *Client) Approve(ctx context.Context, spender common.Address, amountBaseUnits string) error {
	if _, err := pricing.ParseBaseUnits(amountBaseUnits); err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	return c.submit(ctx, "approve", spender.Hex(), amountBaseUnits)
}

func (c *Client) BuyTickets(ctx context.Context, ticketCount int64, referrer common.Address) error {
	if ticketCount <= 0 {
		return fmt.Errorf("buyTickets: ticket count must be positive")
	}
	return c.submit(ctx, "buyTickets", ticketCount, referrer.Hex())
}

var (
	_ Reader = (*Client)(nil)
	_ Writer = (*Client)(nil)
)
