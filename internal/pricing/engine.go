package pricing

import (
	"fmt"
	"math/big"
)

const (
	// MaxTotalDiscountPercent is the hard cap on stacked discounts,
	// independent of how the tier table is constructed.
	MaxTotalDiscountPercent = 90

	// MaxTicketsPerApproval bounds a single spend approval. Approving
	// for an unbounded number of tickets is disallowed as policy.
	MaxTicketsPerApproval = 50

	// ApprovalSafetyMarginPercent is added on top of the approval base
	// to tolerate price drift between approval and purchase.
	ApprovalSafetyMarginPercent = 5
)

var hundred = big.NewInt(100)

// ValidationError reports invalid input to the engine. It is always
// raised before any remote call could be attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PriceCalculation is an immutable value object produced per quote.
// All amounts are 18-decimal base units; TotalBaseUnits is the string
// form handed to ledger write calls so no precision is lost en route.
type PriceCalculation struct {
	TicketCount             int64    `json:"ticket_count"`
	UnitPrice               *big.Int `json:"-"`
	Subtotal                *big.Int `json:"-"`
	BulkDiscountPercent     int64    `json:"bulk_discount_percent"`
	ReferralDiscountPercent int64    `json:"referral_discount_percent"`
	TotalDiscountPercent    int64    `json:"total_discount_percent"`
	DiscountAmount          *big.Int `json:"-"`
	FinalTotal              *big.Int `json:"-"`
	TotalBaseUnits          string   `json:"total_base_units"`
}

// CalculatePrice computes the full price breakdown for a ticket order.
// Pure integer arithmetic throughout; tiers and the referral discount
// arrive pre-parsed from the ledger. The referral percent is already
// bounded by its max upstream (ReferralState.CurrentDiscount); this
// function does not recompute referral accumulation.
func CalculatePrice(ticketCount int64, unitPrice *big.Int, tiers []Tier, referralDiscountPercent int64) (PriceCalculation, error) {
	if ticketCount <= 0 {
		return PriceCalculation{}, &ValidationError{Field: "ticket count", Reason: "must be positive"}
	}
	if unitPrice == nil || unitPrice.Sign() <= 0 {
		return PriceCalculation{}, &ValidationError{Field: "unit price", Reason: "must be positive"}
	}
	if referralDiscountPercent < 0 {
		return PriceCalculation{}, &ValidationError{Field: "referral discount", Reason: "must not be negative"}
	}

	subtotal := new(big.Int).Mul(unitPrice, big.NewInt(ticketCount))

	bulk := SelectTier(tiers, ticketCount)

	total := bulk + referralDiscountPercent
	if total > MaxTotalDiscountPercent {
		total = MaxTotalDiscountPercent
	}

	discountAmount := new(big.Int).Mul(subtotal, big.NewInt(total))
	discountAmount.Div(discountAmount, hundred)

	finalTotal := new(big.Int).Sub(subtotal, discountAmount)

	return PriceCalculation{
		TicketCount:             ticketCount,
		UnitPrice:               new(big.Int).Set(unitPrice),
		Subtotal:                subtotal,
		BulkDiscountPercent:     bulk,
		ReferralDiscountPercent: referralDiscountPercent,
		TotalDiscountPercent:    total,
		DiscountAmount:          discountAmount,
		FinalTotal:              finalTotal,
		TotalBaseUnits:          finalTotal.String(),
	}, nil
}

// CalculateApprovalAmount returns the base-unit string to request as a
// spend approval: unit price times the clamped ticket count, plus the
// safety margin. Integer arithmetic only.
func CalculateApprovalAmount(unitPrice *big.Int, ticketCount int64) (string, error) {
	if ticketCount <= 0 {
		return "", &ValidationError{Field: "ticket count", Reason: "must be positive"}
	}
	if unitPrice == nil || unitPrice.Sign() <= 0 {
		return "", &ValidationError{Field: "unit price", Reason: "must be positive"}
	}

	clamped := ticketCount
	if clamped > MaxTicketsPerApproval {
		clamped = MaxTicketsPerApproval
	}

	base := new(big.Int).Mul(unitPrice, big.NewInt(clamped))

	margin := new(big.Int).Mul(base, big.NewInt(ApprovalSafetyMarginPercent))
	margin.Div(margin, hundred)

	return new(big.Int).Add(base, margin).String(), nil
}

// ValidatePriceCalculation recomputes the derived fields from the
// stored inputs and checks them exactly. It is a self-check / test
// oracle, not a runtime gate.
func ValidatePriceCalculation(calc PriceCalculation) bool {
	if calc.TicketCount <= 0 || calc.UnitPrice == nil || calc.UnitPrice.Sign() <= 0 {
		return false
	}
	if calc.TotalDiscountPercent < 0 || calc.TotalDiscountPercent > MaxTotalDiscountPercent {
		return false
	}

	subtotal := new(big.Int).Mul(calc.UnitPrice, big.NewInt(calc.TicketCount))
	if calc.Subtotal == nil || subtotal.Cmp(calc.Subtotal) != 0 {
		return false
	}

	discount := new(big.Int).Mul(subtotal, big.NewInt(calc.TotalDiscountPercent))
	discount.Div(discount, hundred)
	if calc.DiscountAmount == nil || discount.Cmp(calc.DiscountAmount) != 0 {
		return false
	}

	final := new(big.Int).Sub(subtotal, discount)
	if calc.FinalTotal == nil || final.Cmp(calc.FinalTotal) != 0 {
		return false
	}

	return calc.TotalBaseUnits == final.String()
}

// DisplayBreakdown renders a calculation for presentation. Raw
// base-unit strings stay alongside so callers never re-derive amounts
// from the formatted values.
type DisplayBreakdown struct {
	TicketCount             int64  `json:"ticket_count"`
	UnitPrice               string `json:"unit_price"`
	Subtotal                string `json:"subtotal"`
	BulkDiscountPercent     int64  `json:"bulk_discount_percent"`
	ReferralDiscountPercent int64  `json:"referral_discount_percent"`
	TotalDiscountPercent    int64  `json:"total_discount_percent"`
	DiscountAmount          string `json:"discount_amount"`
	FinalTotal              string `json:"final_total"`
	TotalBaseUnits          string `json:"total_base_units"`
}

// Display formats the calculation for the view layer.
func (c PriceCalculation) Display() DisplayBreakdown {
	return DisplayBreakdown{
		TicketCount:             c.TicketCount,
		UnitPrice:               FormatBaseUnits(c.UnitPrice),
		Subtotal:                FormatBaseUnits(c.Subtotal),
		BulkDiscountPercent:     c.BulkDiscountPercent,
		ReferralDiscountPercent: c.ReferralDiscountPercent,
		TotalDiscountPercent:    c.TotalDiscountPercent,
		DiscountAmount:          FormatBaseUnits(c.DiscountAmount),
		FinalTotal:              FormatBaseUnits(c.FinalTotal),
		TotalBaseUnits:          c.TotalBaseUnits,
	}
}
