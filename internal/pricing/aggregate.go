package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/gyeh/medbill/internal/model"
	"github.com/gyeh/medbill/internal/normalize"
)

// defaultDescription labels references whose fee rows carry no description.
const defaultDescription = "Medical Service"

// FeeAggregate is the per-code summary of every active fee row, in cents.
// Zero fees are already excluded; nil means no non-zero value existed.
type FeeAggregate struct {
	MinNonFac   *int64
	MaxNonFac   *int64
	AvgNonFac   *float64
	MinFac      *int64
	MaxFac      *int64
	AvgFac      *float64
	Description *string
}

// FromAggregate turns an aggregate into a reference price. The high price is
// the largest non-zero minimum or maximum (the averages stand in when no
// bound survived); the average price is the mean of the non-zero setting
// averages, or the high price when neither exists. ok is false when nothing
// is priced or either result rounds to zero.
func FromAggregate(agg FeeAggregate) (model.PriceReference, bool) {
	var candidates []decimal.Decimal
	for _, c := range []*int64{agg.MinNonFac, agg.MaxNonFac, agg.MinFac, agg.MaxFac} {
		if c != nil && *c > 0 {
			candidates = append(candidates, normalize.CentsToDollars(*c))
		}
	}

	var avgs []decimal.Decimal
	for _, a := range []*float64{agg.AvgNonFac, agg.AvgFac} {
		if a != nil && *a > 0 {
			avgs = append(avgs, decimal.NewFromFloat(*a).Shift(-2))
		}
	}

	if len(candidates) == 0 {
		candidates = avgs
	}
	if len(candidates) == 0 {
		return model.PriceReference{}, false
	}

	high := decimal.Max(candidates[0], candidates[1:]...)

	// Facility and non-facility averages are weighted equally regardless of
	// how many rows back each one.
	avg := high
	if len(avgs) > 0 {
		avg = decimal.Sum(avgs[0], avgs[1:]...).Div(decimal.NewFromInt(int64(len(avgs))))
	}

	ref := model.PriceReference{
		Description: defaultDescription,
		AvgPrice:    normalize.Money(avg),
		HighPrice:   normalize.Money(high),
	}
	if agg.Description != nil && *agg.Description != "" {
		ref.Description = *agg.Description
	}
	if !ref.Valid() {
		return model.PriceReference{}, false
	}
	return ref, true
}
