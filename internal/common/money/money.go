// Package money converts between stored minor units and decimal amounts.
//
// Amounts are persisted as int64 cents so that store-side atomic increments
// stay exact. The HTTP layer speaks decimal strings.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

const Scale = 2

var (
	ErrNegative  = errors.New("amount must not be negative")
	ErrPrecision = errors.New("amount has more than 2 decimal places")
	ErrOverflow  = errors.New("amount is too large")
)

var maxAmount = decimal.New(1, 15)

// FromDecimal returns the amount in minor units.
func FromDecimal(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, ErrNegative
	}
	if !d.Equal(d.Round(Scale)) {
		return 0, ErrPrecision
	}
	if d.GreaterThanOrEqual(maxAmount) {
		return 0, ErrOverflow
	}
	return d.Shift(Scale).IntPart(), nil
}

// Parse parses a decimal string into minor units.
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return FromDecimal(d)
}

func ToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -Scale)
}

// Format renders minor units with exactly two decimals, e.g. "12.50".
func Format(cents int64) string {
	return ToDecimal(cents).StringFixed(Scale)
}
