package money

import (
	"github.com/shopspring/decimal"
)

// Ratio is an optional percentage value. A Ratio is either applicable,
// carrying a decimal fraction (0.425 for +42.5%), or not applicable,
// the state a percentage field takes when its denominator is zero
// (no cost basis, no sales). Callers must check Applicable before
// doing arithmetic on Value; JSON renders a not-applicable Ratio as null
// so clients cannot mistake it for a literal 0% return.
type Ratio struct {
	Applicable bool            `msgpack:"applicable"`
	Value      decimal.Decimal `msgpack:"value"`
}

// RatioOf returns an applicable Ratio holding v.
func RatioOf(v decimal.Decimal) Ratio {
	return Ratio{Applicable: true, Value: v}
}

// NotApplicable returns the "no meaningful value" Ratio.
func NotApplicable() Ratio {
	return Ratio{}
}

// Decimal returns the held value and whether it is applicable.
func (r Ratio) Decimal() (decimal.Decimal, bool) {
	return r.Value, r.Applicable
}

// Equal reports whether two Ratios are both not-applicable or hold equal values.
func (r Ratio) Equal(other Ratio) bool {
	if r.Applicable != other.Applicable {
		return false
	}
	if !r.Applicable {
		return true
	}
	return r.Value.Equal(other.Value)
}

// String renders the value, or "-" when not applicable.
func (r Ratio) String() string {
	if !r.Applicable {
		return "-"
	}
	return r.Value.String()
}

// MarshalJSON renders null when not applicable, otherwise the decimal value.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Applicable {
		return []byte("null"), nil
	}
	return r.Value.MarshalJSON()
}

// UnmarshalJSON accepts null or a decimal value.
func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Ratio{}
		return nil
	}
	if err := r.Value.UnmarshalJSON(data); err != nil {
		return err
	}
	r.Applicable = true
	return nil
}
