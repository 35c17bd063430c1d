package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"lottery-view/internal/chain"
	"lottery-view/internal/health"
	"lottery-view/internal/logs"
	"lottery-view/internal/metrics"
	"lottery-view/internal/pricing"
	"lottery-view/internal/view"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	orch      *view.Orchestrator
	submitter *chain.Submitter
	reader    chain.Reader
	pool      *chain.EndpointPool
	metrics   *metrics.Registry
	logger    *logs.Logger
	analyzer  *health.Analyzer

	owner   common.Address // account whose balance/allowance gate writes
	spender common.Address // lottery contract allowed to spend
}

// NewHandler creates a new API handler.
func NewHandler(
	orch *view.Orchestrator,
	submitter *chain.Submitter,
	reader chain.Reader,
	pool *chain.EndpointPool,
	reg *metrics.Registry,
	logger *logs.Logger,
	owner, spender common.Address,
) *Handler {
	return &Handler{
		orch:      orch,
		submitter: submitter,
		reader:    reader,
		pool:      pool,
		metrics:   reg,
		logger:    logger,
		analyzer:  health.NewAnalyzer(reg, logger),
		owner:     owner,
		spender:   spender,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto status codes with messages
// specific enough to act on.
func writeError(w http.ResponseWriter, err error) {
	var ve *pricing.ValidationError
	switch {
	case errors.As(err, &ve):
		http.Error(w, ve.Error(), http.StatusBadRequest)
	case errors.Is(err, chain.ErrInsufficientBalance),
		errors.Is(err, chain.ErrInsufficientAllowance):
		http.Error(w, err.Error(), http.StatusConflict)
	case chain.Classify(err) == chain.KindTimeout:
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

/* ---------------- GET /view ---------------- */

func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.orch.Snapshot())
}

/* ---------------- GET /quote?tickets=N ---------------- */

func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	tickets, err := strconv.ParseInt(r.URL.Query().Get("tickets"), 10, 64)
	if err != nil {
		http.Error(w, "tickets must be an integer", http.StatusBadRequest)
		return
	}

	calc, err := h.orch.Quote(r.Context(), tickets)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, calc.Display())
}

/* ---------------- GET /winners?draw=D&tier=T ---------------- */

func (h *Handler) GetWinners(w http.ResponseWriter, r *http.Request) {
	draw, err := strconv.ParseUint(r.URL.Query().Get("draw"), 10, 64)
	if err != nil {
		http.Error(w, "draw must be a non-negative integer", http.StatusBadRequest)
		return
	}
	tier, err := strconv.ParseUint(r.URL.Query().Get("tier"), 10, 8)
	if err != nil {
		http.Error(w, "tier must be a small non-negative integer", http.StatusBadRequest)
		return
	}

	winners, err := h.orch.Winners(r.Context(), draw, uint8(tier))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]string, len(winners))
	for i, addr := range winners {
		out[i] = addr.Hex()
	}
	writeJSON(w, map[string]any{"draw": draw, "tier": tier, "winners": out})
}

/* ---------------- POST /approve ---------------- */

type approveRequest struct {
	Tickets int64 `json:"tickets"`
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	price, err := h.orch.TicketPriceNow(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	amount, err := pricing.CalculateApprovalAmount(price, req.Tickets)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.submitter.ApproveSpend(r.Context(), h.owner, h.spender, amount); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]string{
		"approved_base_units": amount,
		"state":               h.submitter.State().String(),
	})
}

/* ---------------- POST /revoke ---------------- */

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.submitter.RevokeApproval(r.Context(), h.spender); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]string{
		"approved_base_units": "0",
		"state":               h.submitter.State().String(),
	})
}

/* ---------------- POST /buy ---------------- */

type buyRequest struct {
	Tickets  int64  `json:"tickets"`
	Referrer string `json:"referrer,omitempty"`
}

func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	var referrer common.Address
	if req.Referrer != "" {
		if !common.IsHexAddress(req.Referrer) {
			http.Error(w, "referrer must be a hex address", http.StatusBadRequest)
			return
		}
		referrer = common.HexToAddress(req.Referrer)
	}

	calc, err := h.orch.Quote(r.Context(), req.Tickets)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.submitter.BuyTickets(r.Context(), h.owner, h.spender, calc, referrer); err != nil {
		writeError(w, err)
		return
	}

	// Purchase changes pool, draw and referral state on-chain; drop
	// the affected keys so the next refresh re-reads them.
	h.orch.InvalidateAfterPurchase()

	writeJSON(w, calc.Display())
}

/* ---------------- GET /allowance ---------------- */

func (h *Handler) GetAllowance(w http.ResponseWriter, r *http.Request) {
	allowance, err := h.reader.Allowance(r.Context(), h.owner, h.spender)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]string{
		"allowance_base_units": allowance.String(),
		"allowance_display":    pricing.FormatBaseUnits(allowance),
		"state":                h.submitter.State().String(),
	})
}

/* ---------------- GET /metrics ---------------- */

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.metrics.Snapshot())
}

/* ---------------- GET /health ---------------- */

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.analyzer.Analyze())
}

/* ---------------- GET /logs?n=N ---------------- */

func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	n := 50
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	writeJSON(w, h.logger.GetLast(n))
}

/* ---------------- GET /admin/endpoints ---------------- */

func (h *Handler) GetEndpoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.pool.Snapshot())
}
