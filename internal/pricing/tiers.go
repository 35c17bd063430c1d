package pricing

// Tier is one threshold of the contract's bulk-discount table.
// The table is read-only after load.
type Tier struct {
	MinTickets      int64 `json:"min_tickets"`
	DiscountPercent int64 `json:"discount_percent"`
}

// SelectTier returns the bulk discount percent for the given ticket
// count: the tier with the greatest MinTickets not exceeding the count.
// Ties on MinTickets resolve to the larger discount. Returns 0 when no
// tier qualifies. The table does not need to be sorted.
func SelectTier(tiers []Tier, ticketCount int64) int64 {
	var best *Tier
	for i := range tiers {
		t := &tiers[i]
		if t.MinTickets > ticketCount {
			continue
		}
		if best == nil ||
			t.MinTickets > best.MinTickets ||
			(t.MinTickets == best.MinTickets && t.DiscountPercent > best.DiscountPercent) {
			best = t
		}
	}
	if best == nil {
		return 0
	}
	return best.DiscountPercent
}
