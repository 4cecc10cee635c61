// Package money holds the decimal helpers shared by every pricing component.
//
// Amounts are kept as decimal.Decimal so repeated recalculations of the same
// cart always produce identical values. The rounding policy is fixed: two
// places, half away from zero, applied when an amount is stored.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits stored for every amount.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Zero is the additive identity.
var Zero = decimal.Zero

// Round applies the storage rounding policy.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Percent returns pct percent of base, unrounded.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Parse converts a configuration string into a decimal. Empty input yields zero.
func Parse(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return d, nil
}

// ParseOptional is Parse for amounts that may be absent. Empty input yields nil.
func ParseOptional(value string) (*decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	d, err := Parse(value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// MustParse behaves like Parse but panics on malformed input. Useful for tests and fixtures.
func MustParse(value string) decimal.Decimal {
	d, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return d
}

// ExtractVAT returns the tax portion of a VAT-inclusive total: total − total/(1+rate).
func ExtractVAT(total, rate decimal.Decimal) decimal.Decimal {
	divisor := decimal.NewFromInt(1).Add(rate)
	if divisor.IsZero() {
		return decimal.Zero
	}
	return total.Sub(total.Div(divisor))
}
