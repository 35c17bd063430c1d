package view

import (
	"time"

	"lottery-view/internal/pricing"
)

// FieldStatus labels the provenance of one view-model field so the
// presentation layer can distinguish authoritative, degraded and
// still-loading data. A field is never silently substituted with a
// fabricated default.
type FieldStatus string

const (
	FieldLoading FieldStatus = "loading"
	FieldFresh   FieldStatus = "fresh"
	FieldStale   FieldStatus = "stale"
)

// AmountField carries both the raw base-unit value and a display
// string, so consumers never re-derive one from the other.
type AmountField struct {
	Raw     string      `json:"raw"`
	Display string      `json:"display"`
	Status  FieldStatus `json:"status"`
}

// CountdownField is seconds until the next draw. The raw ledger value
// resets it on every refresh; between refreshes it ticks down locally.
type CountdownField struct {
	Seconds int64       `json:"seconds"`
	Status  FieldStatus `json:"status"`
}

// TiersField is the bulk-discount table.
type TiersField struct {
	Tiers  []pricing.Tier `json:"tiers"`
	Status FieldStatus    `json:"status"`
}

// ReferralField summarizes the player's referral position.
type ReferralField struct {
	TotalReferrals     int64       `json:"total_referrals"`
	DiscountPercent    int64       `json:"discount_percent"`
	MaxDiscountPercent int64       `json:"max_discount_percent"`
	Status             FieldStatus `json:"status"`
}

// ViewModel is the unified snapshot handed to the presentation layer.
// It is immutable: every refresh builds a new model and swaps it in
// whole, so consumers never observe a partially-updated mix of fields.
type ViewModel struct {
	Pool        AmountField    `json:"pool"`
	Jackpot     AmountField    `json:"jackpot"`
	TicketPrice AmountField    `json:"ticket_price"`
	Countdown   CountdownField `json:"countdown"`
	Tiers       TiersField     `json:"discount_tiers"`
	Referral    ReferralField  `json:"referral"`
	GeneratedAt time.Time      `json:"generated_at"`
}

func emptyViewModel() *ViewModel {
	return &ViewModel{
		Pool:        AmountField{Status: FieldLoading},
		Jackpot:     AmountField{Status: FieldLoading},
		TicketPrice: AmountField{Status: FieldLoading},
		Countdown:   CountdownField{Status: FieldLoading},
		Tiers:       TiersField{Status: FieldLoading},
		Referral:    ReferralField{Status: FieldLoading},
	}
}
