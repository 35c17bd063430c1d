package chain

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"lottery-view/internal/pricing"
)

// Strict coercion of loosely-typed RPC reply values. Every remote reply
// passes through exactly one of these functions immediately after the
// executor call, before anything touches the cache. A reply that does
// not coerce cleanly is an invalid response, never a zero value.

func invalidReply(op string, v any, reason string) error {
	return &CallError{
		Kind: KindInvalidResponse,
		Op:   op,
		Err:  fmt.Errorf("cannot parse reply %v (%T): %s", v, v, reason),
	}
}

// ParseBigInt coerces a reply into an unsigned base-unit integer.
// Accepted shapes: *big.Int, decimal or 0x-prefixed string,
// json.Number, and integral float64 within the exact-integer range.
func ParseBigInt(op string, v any) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil, invalidReply(op, v, "nil big.Int")
		}
		return new(big.Int).Set(x), nil
	case string:
		return parseBigIntString(op, x)
	case json.Number:
		return parseBigIntString(op, x.String())
	case float64:
		// JSON decoding without UseNumber lands here. Only exact
		// integers within float64's integer-safe range are accepted;
		// anything else must arrive as a string.
		if x != math.Trunc(x) || math.Abs(x) >= 1<<53 {
			return nil, invalidReply(op, v, "not an exact integer")
		}
		return big.NewInt(int64(x)), nil
	case int:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	default:
		return nil, invalidReply(op, v, "unsupported type")
	}
}

func parseBigIntString(op, s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, invalidReply(op, s, "empty string")
	}

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}

	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, invalidReply(op, s, "not an integer")
	}
	if n.Sign() < 0 {
		return nil, invalidReply(op, s, "negative value for unsigned field")
	}
	return n, nil
}

// ParseInt64 coerces a reply into a non-negative int64 (seconds,
// counters, percentages).
func ParseInt64(op string, v any) (int64, error) {
	n, err := ParseBigInt(op, v)
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() {
		return 0, invalidReply(op, v, "out of int64 range")
	}
	return n.Int64(), nil
}

// ParseTiers coerces the contract's tier table reply. Each element may
// be a {"min_tickets", "discount_percent"} object or a two-element
// [minTickets, discountPercent] array.
func ParseTiers(op string, v any) ([]pricing.Tier, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, invalidReply(op, v, "tier table is not a list")
	}

	tiers := make([]pricing.Tier, 0, len(raw))
	for _, item := range raw {
		tier, err := parseTier(op, item)
		if err != nil {
			return nil, err
		}
		if tier.DiscountPercent < 0 || tier.DiscountPercent > 100 {
			return nil, invalidReply(op, item, "discount percent outside 0-100")
		}
		tiers = append(tiers, tier)
	}
	return tiers, nil
}

func parseTier(op string, v any) (pricing.Tier, error) {
	switch x := v.(type) {
	case map[string]any:
		minTickets, err := ParseInt64(op, x["min_tickets"])
		if err != nil {
			return pricing.Tier{}, err
		}
		percent, err := ParseInt64(op, x["discount_percent"])
		if err != nil {
			return pricing.Tier{}, err
		}
		return pricing.Tier{MinTickets: minTickets, DiscountPercent: percent}, nil
	case []any:
		if len(x) != 2 {
			return pricing.Tier{}, invalidReply(op, v, "tier tuple must have 2 elements")
		}
		minTickets, err := ParseInt64(op, x[0])
		if err != nil {
			return pricing.Tier{}, err
		}
		percent, err := ParseInt64(op, x[1])
		if err != nil {
			return pricing.Tier{}, err
		}
		return pricing.Tier{MinTickets: minTickets, DiscountPercent: percent}, nil
	default:
		return pricing.Tier{}, invalidReply(op, v, "unsupported tier shape")
	}
}

// ParseReferral coerces the contract's referral info tuple:
// (totalReferrals, discountPerReferral, maxDiscount).
func ParseReferral(op string, v any) (pricing.ReferralState, error) {
	switch x := v.(type) {
	case map[string]any:
		total, err := ParseInt64(op, x["total_referrals"])
		if err != nil {
			return pricing.ReferralState{}, err
		}
		per, err := ParseInt64(op, x["discount_per_referral"])
		if err != nil {
			return pricing.ReferralState{}, err
		}
		max, err := ParseInt64(op, x["max_discount"])
		if err != nil {
			return pricing.ReferralState{}, err
		}
		return pricing.ReferralState{TotalReferrals: total, DiscountPerReferral: per, MaxDiscount: max}, nil
	case []any:
		if len(x) != 3 {
			return pricing.ReferralState{}, invalidReply(op, v, "referral tuple must have 3 elements")
		}
		total, err := ParseInt64(op, x[0])
		if err != nil {
			return pricing.ReferralState{}, err
		}
		per, err := ParseInt64(op, x[1])
		if err != nil {
			return pricing.ReferralState{}, err
		}
		max, err := ParseInt64(op, x[2])
		if err != nil {
			return pricing.ReferralState{}, err
		}
		return pricing.ReferralState{TotalReferrals: total, DiscountPerReferral: per, MaxDiscount: max}, nil
	default:
		return pricing.ReferralState{}, invalidReply(op, v, "unsupported referral shape")
	}
}

// ParseAddresses coerces a winner list reply into checksummed addresses.
func ParseAddresses(op string, v any) ([]common.Address, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, invalidReply(op, v, "winner list is not a list")
	}

	out := make([]common.Address, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok || !common.IsHexAddress(s) {
			return nil, invalidReply(op, item, "not a hex address")
		}
		out = append(out, common.HexToAddress(s))
	}
	return out, nil
}
