package model

import "github.com/shopspring/decimal"

type DiscrepancyType string

const (
	DiscrepancyDuplicateCharge DiscrepancyType = "duplicate_charge"
	DiscrepancyPriceInflation  DiscrepancyType = "price_inflation"
	DiscrepancyQuantityAnomaly DiscrepancyType = "quantity_anomaly"
	DiscrepancyMathError       DiscrepancyType = "math_error"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Discrepancy is one finding produced by the detection engine. ItemsInvolved
// holds line item positions and is empty for bill-level findings.
type Discrepancy struct {
	Type                DiscrepancyType `json:"type"`
	Severity            Severity        `json:"severity"`
	Confidence          Confidence      `json:"confidence"`
	Description         string          `json:"description"`
	ItemsInvolved       []int           `json:"items_involved"`
	PotentialOvercharge decimal.Decimal `json:"potential_overcharge"`
	Reference           *PriceReference `json:"reference,omitempty"`
}

// Issue is the condensed form of a finding listed in a dispute package.
type Issue struct {
	Type                DiscrepancyType `json:"type"`
	Description         string          `json:"description"`
	PotentialOvercharge decimal.Decimal `json:"potential_overcharge"`
}

// TotalOvercharge sums PotentialOvercharge across findings.
func TotalOvercharge(findings []Discrepancy) decimal.Decimal {
	total := decimal.Zero
	for _, d := range findings {
		total = total.Add(d.PotentialOvercharge)
	}
	return total
}

// Issues condenses findings for a dispute package.
func Issues(findings []Discrepancy) []Issue {
	out := make([]Issue, len(findings))
	for i, d := range findings {
		out[i] = Issue{
			Type:                d.Type,
			Description:         d.Description,
			PotentialOvercharge: d.PotentialOvercharge,
		}
	}
	return out
}
