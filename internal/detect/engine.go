// Package detect runs rule-based billing error checks over a bill's line items.
package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gyeh/medbill/internal/model"
	"github.com/gyeh/medbill/internal/normalize"
)

var (
	inflationFactor   = decimal.RequireFromString("1.5")
	mathTolerance     = decimal.NewFromInt(1)
	maxNormalQuantity = 5
)

// PriceLookup resolves a billed code to its reference price.
type PriceLookup interface {
	Resolve(ctx context.Context, code string) (model.PriceReference, bool)
}

// Engine produces findings for a bill. It is stateless apart from its price
// lookup and safe for concurrent use.
type Engine struct {
	prices PriceLookup
}

func NewEngine(prices PriceLookup) *Engine {
	return &Engine{prices: prices}
}

// Detect runs every check in a fixed order (duplicates, price inflation,
// quantity, math) and returns a fresh list. The result is never nil.
func (e *Engine) Detect(ctx context.Context, bill *model.BillRecord) []model.Discrepancy {
	findings := []model.Discrepancy{}
	findings = append(findings, duplicates(bill.LineItems)...)
	findings = append(findings, e.priceInflation(ctx, bill.LineItems)...)
	findings = append(findings, quantityAnomalies(bill.LineItems)...)
	findings = append(findings, mathErrors(bill)...)
	return findings
}

type dupKey struct {
	code        string
	description string
	date        string
}

// duplicates flags every repeat of (code, description, date of service)
// against its first occurrence.
func duplicates(items []model.LineItem) []model.Discrepancy {
	var out []model.Discrepancy
	seen := make(map[dupKey]int, len(items))
	for i := range items {
		item := &items[i]
		key := dupKey{
			code:        strings.TrimSpace(item.CodeValue()),
			description: strings.ToLower(strings.TrimSpace(item.Description)),
			date:        normalize.DateKey(item.DateOfService),
		}
		first, ok := seen[key]
		if !ok {
			seen[key] = i
			continue
		}

		on := "same date"
		if item.DateOfService != nil {
			on = *item.DateOfService
		}
		out = append(out, model.Discrepancy{
			Type:                model.DiscrepancyDuplicateCharge,
			Severity:            model.SeverityHigh,
			Confidence:          model.ConfidenceHigh,
			Description:         fmt.Sprintf("Duplicate charge detected: '%s' appears multiple times on %s", item.Description, on),
			ItemsInvolved:       []int{first, i},
			PotentialOvercharge: item.TotalCharge,
		})
	}
	return out
}

func (e *Engine) priceInflation(ctx context.Context, items []model.LineItem) []model.Discrepancy {
	if e.prices == nil {
		return nil
	}
	var out []model.Discrepancy
	for i := range items {
		item := &items[i]
		if strings.TrimSpace(item.CodeValue()) == "" || !item.TotalCharge.IsPositive() {
			continue
		}
		ref, ok := e.prices.Resolve(ctx, item.CodeValue())
		if !ok || !item.TotalCharge.GreaterThan(ref.HighPrice) {
			continue
		}

		d := model.Discrepancy{
			Type:                model.DiscrepancyPriceInflation,
			Confidence:          model.ConfidenceMedium,
			ItemsInvolved:       []int{i},
			PotentialOvercharge: normalize.Money(item.TotalCharge.Sub(ref.HighPrice)),
			Reference:           &ref,
		}
		if item.TotalCharge.GreaterThan(ref.HighPrice.Mul(inflationFactor)) {
			d.Severity = model.SeverityHigh
			d.Description = fmt.Sprintf("'%s' charged at $%s, well above typical range ($%s-$%s)",
				item.Description, item.TotalCharge.StringFixed(2), ref.AvgPrice.StringFixed(2), ref.HighPrice.StringFixed(2))
		} else {
			d.Severity = model.SeverityMedium
			d.Description = fmt.Sprintf("'%s' charged at $%s, above typical high of $%s",
				item.Description, item.TotalCharge.StringFixed(2), ref.HighPrice.StringFixed(2))
		}
		out = append(out, d)
	}
	return out
}

func quantityAnomalies(items []model.LineItem) []model.Discrepancy {
	var out []model.Discrepancy
	for i := range items {
		item := &items[i]
		if item.Qty() <= maxNormalQuantity {
			continue
		}
		out = append(out, model.Discrepancy{
			Type:                model.DiscrepancyQuantityAnomaly,
			Severity:            model.SeverityMedium,
			Confidence:          model.ConfidenceLow,
			Description:         fmt.Sprintf("'%s' has quantity of %d, verify this is correct", item.Description, item.Qty()),
			ItemsInvolved:       []int{i},
			PotentialOvercharge: decimal.Zero,
		})
	}
	return out
}

// mathErrors compares the sum of line totals with the stated bill total.
// Only an overstated total yields a dollar amount.
func mathErrors(bill *model.BillRecord) []model.Discrepancy {
	if !bill.TotalBilled.Valid || len(bill.LineItems) == 0 {
		return nil
	}
	stated := bill.TotalBilled.Decimal
	sum := decimal.Zero
	for i := range bill.LineItems {
		sum = sum.Add(bill.LineItems[i].TotalCharge)
	}
	diff := sum.Sub(stated).Abs()
	if !diff.GreaterThan(mathTolerance) {
		return nil
	}

	overcharge := decimal.Zero
	if sum.LessThan(stated) {
		overcharge = normalize.Money(diff)
	}
	return []model.Discrepancy{{
		Type:       model.DiscrepancyMathError,
		Severity:   model.SeverityHigh,
		Confidence: model.ConfidenceHigh,
		Description: fmt.Sprintf("Line items total $%s but bill states $%s (difference: $%s)",
			sum.StringFixed(2), stated.StringFixed(2), diff.StringFixed(2)),
		ItemsInvolved:       []int{},
		PotentialOvercharge: overcharge,
	}}
}
