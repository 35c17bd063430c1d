package pricing

// ReferralState is derived from ledger reads and recomputed on every
// refresh; the client never persists it authoritatively.
type ReferralState struct {
	TotalReferrals      int64 `json:"total_referrals"`
	DiscountPerReferral int64 `json:"discount_per_referral"`
	MaxDiscount         int64 `json:"max_discount"`
}

// CurrentDiscount returns the accumulated referral discount percent,
// bounded by MaxDiscount.
func (r ReferralState) CurrentDiscount() int64 {
	d := r.TotalReferrals * r.DiscountPerReferral
	if d < 0 {
		return 0
	}
	if d > r.MaxDiscount {
		return r.MaxDiscount
	}
	return d
}
