package model

import "github.com/shopspring/decimal"

// PriceReference is a benchmark price range for one procedure code.
// HighPrice is never below AvgPrice and both are positive.
type PriceReference struct {
	Description string          `json:"description"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
	HighPrice   decimal.Decimal `json:"high_price"`
}

// Valid reports whether both prices are positive.
func (p PriceReference) Valid() bool {
	return p.AvgPrice.IsPositive() && p.HighPrice.IsPositive()
}
