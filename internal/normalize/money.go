package normalize

import (
	"math"

	"github.com/shopspring/decimal"
)

// DollarsToCents converts a nullable float64 dollar amount to nullable int64 cents.
// Uses math.Round to avoid truncation bias.
func DollarsToCents(v *float64) *int64 {
	if v == nil {
		return nil
	}
	c := int64(math.Round(*v * 100))
	return &c
}

// CentsToDollars converts integer cents to a decimal dollar amount.
func CentsToDollars(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// Money rounds a dollar amount to whole cents.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
