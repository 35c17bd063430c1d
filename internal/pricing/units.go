package pricing

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// BaseDecimals is the fixed-point precision of all on-chain amounts.
const BaseDecimals = 18

var baseUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(BaseDecimals), nil)

// BaseUnit returns 10^18 as a fresh big.Int.
func BaseUnit() *big.Int {
	return new(big.Int).Set(baseUnit)
}

// ToBaseUnits converts a whole-token count into base units.
func ToBaseUnits(tokens int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(tokens), baseUnit)
}

// ParseBaseUnits parses a base-unit integer string.
func ParseBaseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("pricing: %q is not a base-unit integer", s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("pricing: base-unit amount %q is negative", s)
	}
	return n, nil
}

// FormatBaseUnits renders a base-unit amount as a human token string.
// Display formatting is the only place decimal math is allowed; every
// value that can feed a ledger call stays an integer.
func FormatBaseUnits(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -BaseDecimals).String()
}
