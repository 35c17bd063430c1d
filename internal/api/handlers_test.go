package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lottery-view/internal/cache"
	"lottery-view/internal/chain"
	"lottery-view/internal/logs"
	"lottery-view/internal/metrics"
	"lottery-view/internal/pricing"
	"lottery-view/internal/view"
)

/* ---------------- Fake ledger ---------------- */

type fakeLedger struct {
	mu        sync.Mutex
	balance   *big.Int
	allowance *big.Int
	buys      int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balance:   pricing.ToBaseUnits(1000),
		allowance: big.NewInt(0),
	}
}

func (f *fakeLedger) CurrentPool(ctx context.Context) (*big.Int, error) {
	return pricing.ToBaseUnits(1000), nil
}

func (f *fakeLedger) AccumulatedJackpot(ctx context.Context) (*big.Int, error) {
	return pricing.ToBaseUnits(5000), nil
}

func (f *fakeLedger) TicketPrice(ctx context.Context) (*big.Int, error) {
	return pricing.ToBaseUnits(5), nil
}

func (f *fakeLedger) TimeUntilNextDraw(ctx context.Context) (int64, error) {
	return 3600, nil
}

func (f *fakeLedger) DiscountTiers(ctx context.Context) ([]pricing.Tier, error) {
	return []pricing.Tier{{MinTickets: 10, DiscountPercent: 5}}, nil
}

func (f *fakeLedger) ReferralInfo(ctx context.Context, player common.Address) (pricing.ReferralState, error) {
	return pricing.ReferralState{TotalReferrals: 3, DiscountPerReferral: 1, MaxDiscount: 10}, nil
}

func (f *fakeLedger) Winners(ctx context.Context, drawID uint64, tier uint8) ([]common.Address, error) {
	return []common.Address{
		common.HexToAddress("0x3333333333333333333333333333333333333333"),
	}, nil
}

func (f *fakeLedger) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeLedger) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeLedger) Approve(ctx context.Context, spender common.Address, amountBaseUnits string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowance, _ = new(big.Int).SetString(amountBaseUnits, 10)
	return nil
}

func (f *fakeLedger) BuyTickets(ctx context.Context, ticketCount int64, referrer common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buys++
	return nil
}

/* ---------------- Setup ---------------- */

func newTestServer(t *testing.T) (*httptest.Server, *fakeLedger) {
	t.Helper()

	ledger := newFakeLedger()
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(200, logs.DEBUG)
	store := cache.NewStore(logger, reg)

	cfg := view.DefaultConfig()
	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	spender := common.HexToAddress("0x2222222222222222222222222222222222222222")

	orch := view.NewOrchestrator(ledger, store, cfg, owner, logger, reg)
	submitter := chain.NewSubmitter(ledger, ledger, chain.DefaultRetryPolicy(), logger, reg)

	pool := chain.NewEndpointPool(chain.DefaultHealthPolicy(), reg)
	pool.Add("https://gateway.example")

	handler := NewHandler(orch, submitter, ledger, pool, reg, logger, owner, spender)

	srv := httptest.NewServer(RegisterRoutes(http.NewServeMux(), handler))
	t.Cleanup(srv.Close)
	return srv, ledger
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func postJSON(t *testing.T, url string, body any, out any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

/* ---------------- Tests ---------------- */

func TestGetView(t *testing.T) {
	srv, _ := newTestServer(t)

	var vm view.ViewModel
	resp := getJSON(t, srv.URL+"/view", &vm)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, view.FieldLoading, vm.Pool.Status, "nothing fetched before the first refresh")
}

func TestGetQuote(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("valid order", func(t *testing.T) {
		var breakdown pricing.DisplayBreakdown
		resp := getJSON(t, srv.URL+"/quote?tickets=10", &breakdown)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, int64(10), breakdown.TicketCount)
		assert.Equal(t, "50", breakdown.Subtotal)
		assert.Equal(t, int64(8), breakdown.TotalDiscountPercent)
		assert.Equal(t, "46", breakdown.FinalTotal)
		assert.Equal(t, "46000000000000000000", breakdown.TotalBaseUnits)
	})

	t.Run("non-integer tickets", func(t *testing.T) {
		resp := getJSON(t, srv.URL+"/quote?tickets=abc", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("zero tickets", func(t *testing.T) {
		resp := getJSON(t, srv.URL+"/quote?tickets=0", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetWinners(t *testing.T) {
	srv, _ := newTestServer(t)

	var out struct {
		Draw    uint64   `json:"draw"`
		Tier    uint64   `json:"tier"`
		Winners []string `json:"winners"`
	}
	resp := getJSON(t, srv.URL+"/winners?draw=7&tier=1", &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(7), out.Draw)
	require.Len(t, out.Winners, 1)
	assert.Equal(t, "0x3333333333333333333333333333333333333333", out.Winners[0])

	resp = getJSON(t, srv.URL+"/winners?draw=x&tier=1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestApproveRevokeFlow(t *testing.T) {
	srv, ledger := newTestServer(t)

	var approved map[string]string
	resp := postJSON(t, srv.URL+"/approve", approveRequest{Tickets: 10}, &approved)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "approved", approved["state"])
	// 10 tickets at 5 tokens plus the 5% margin.
	assert.Equal(t, "52500000000000000000", approved["approved_base_units"])
	assert.Equal(t, "52500000000000000000", ledger.allowance.String())

	var allowance map[string]string
	resp = getJSON(t, srv.URL+"/allowance", &allowance)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "52.5", allowance["allowance_display"])

	var revoked map[string]string
	resp = postJSON(t, srv.URL+"/revoke", struct{}{}, &revoked)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "unapproved", revoked["state"])
	assert.Equal(t, "0", ledger.allowance.String())
}

func TestBuy(t *testing.T) {
	t.Run("without allowance", func(t *testing.T) {
		srv, ledger := newTestServer(t)

		resp := postJSON(t, srv.URL+"/buy", buyRequest{Tickets: 10}, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, 0, ledger.buys)
	})

	t.Run("after approval", func(t *testing.T) {
		srv, ledger := newTestServer(t)

		resp := postJSON(t, srv.URL+"/approve", approveRequest{Tickets: 10}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var breakdown pricing.DisplayBreakdown
		resp = postJSON(t, srv.URL+"/buy", buyRequest{Tickets: 10}, &breakdown)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "46", breakdown.FinalTotal)
		assert.Equal(t, 1, ledger.buys)
	})

	t.Run("malformed referrer", func(t *testing.T) {
		srv, _ := newTestServer(t)

		resp := postJSON(t, srv.URL+"/buy", buyRequest{Tickets: 10, Referrer: "0x123"}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestMethodEnforcement(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := getJSON(t, srv.URL+"/buy", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/view", struct{}{}, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestObservabilityEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("health", func(t *testing.T) {
		var report map[string]any
		resp := getJSON(t, srv.URL+"/health", &report)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "OK", report["overall_status"])
	})

	t.Run("metrics", func(t *testing.T) {
		// Generate some traffic first.
		getJSON(t, srv.URL+"/quote?tickets=10", nil)

		var snapshot map[string]int64
		resp := getJSON(t, srv.URL+"/metrics", &snapshot)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Greater(t, snapshot[string(metrics.CacheGetsTotal)], int64(0))
	})

	t.Run("logs", func(t *testing.T) {
		var entries []logs.Entry
		resp := getJSON(t, srv.URL+"/logs?n=10", &entries)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = getJSON(t, srv.URL+"/logs?n=bogus", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("endpoints", func(t *testing.T) {
		var endpoints []chain.Endpoint
		resp := getJSON(t, srv.URL+"/admin/endpoints", &endpoints)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, endpoints, 1)
		assert.Equal(t, "https://gateway.example", endpoints[0].URL)
	})
}
