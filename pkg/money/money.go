// Package money provides fixed-point decimal helpers for currency amounts,
// tax-rate conversion, and the Ratio optional type used for percentage
// fields that may be undefined (e.g. a return on a zero cost basis).
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Two is the number of fractional digits carried by currency amounts.
const Two = 2

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// RateFromPercent converts a whole-number percentage (e.g. 15.00) to a
// fraction (0.15), rounded half-up to two decimal places.
func RateFromPercent(percent decimal.Decimal) decimal.Decimal {
	return percent.Div(hundred).Round(Two)
}

// One returns the decimal constant 1.
func One() decimal.Decimal {
	return one
}

// FormatUSD renders a decimal as a US-dollar amount with thousands
// separators. Negative amounts are parenthesized: ($1,234.56).
func FormatUSD(d decimal.Decimal) string {
	negative := d.IsNegative()
	s := d.Abs().StringFixed(Two)

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if negative {
		return "($" + b.String() + "." + frac + ")"
	}
	return "$" + b.String() + "." + frac
}
