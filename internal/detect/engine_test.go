package detect

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/gyeh/medbill/internal/model"
)

type fixedPrices map[string]model.PriceReference

func (f fixedPrices) Resolve(_ context.Context, code string) (model.PriceReference, bool) {
	ref, ok := f[code]
	return ref, ok
}

func str(s string) *string { return &s }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(code, desc, date, total string) model.LineItem {
	li := model.LineItem{
		Description: desc,
		Quantity:    1,
		UnitCharge:  dec(total),
		TotalCharge: dec(total),
		Category:    model.CategoryProcedure,
	}
	if code != "" {
		li.Code = str(code)
	}
	if date != "" {
		li.DateOfService = str(date)
	}
	return li
}

func TestDetectEmptyBill(t *testing.T) {
	e := NewEngine(fixedPrices{})
	got := e.Detect(context.Background(), &model.BillRecord{TotalBilled: decimal.NewNullDecimal(dec("100"))})
	if got == nil || len(got) != 0 {
		t.Fatalf("Detect() = %#v, want empty non-nil slice", got)
	}
}

func TestDetectDuplicates(t *testing.T) {
	bill := &model.BillRecord{LineItems: []model.LineItem{
		item("99284", "ER Visit", "2024-01-01", "500"),
		item("99284", " er visit ", "2024-01-01", "500"),
	}}
	got := NewEngine(nil).Detect(context.Background(), bill)
	if len(got) != 1 {
		t.Fatalf("got %d findings, want 1: %#v", len(got), got)
	}
	d := got[0]
	if d.Type != model.DiscrepancyDuplicateCharge || d.Severity != model.SeverityHigh || d.Confidence != model.ConfidenceHigh {
		t.Errorf("finding = %+v", d)
	}
	if len(d.ItemsInvolved) != 2 || d.ItemsInvolved[0] != 0 || d.ItemsInvolved[1] != 1 {
		t.Errorf("ItemsInvolved = %v, want [0 1]", d.ItemsInvolved)
	}
	if !d.PotentialOvercharge.Equal(dec("500")) {
		t.Errorf("PotentialOvercharge = %s, want 500", d.PotentialOvercharge)
	}
	want := "Duplicate charge detected: ' er visit ' appears multiple times on 2024-01-01"
	if d.Description != want {
		t.Errorf("Description = %q, want %q", d.Description, want)
	}
}

func TestDetectDuplicatesRepeatsAgainstFirst(t *testing.T) {
	bill := &model.BillRecord{LineItems: []model.LineItem{
		item("85025", "CBC", "", "40"),
		item("85025", "CBC", "", "40"),
		item("85025", "CBC", "", "40"),
		item("85025", "CBC", "2024-01-02", "40"),
	}}
	got := NewEngine(nil).Detect(context.Background(), bill)
	if len(got) != 2 {
		t.Fatalf("got %d findings, want 2", len(got))
	}
	for i, wantSecond := range []int{1, 2} {
		if got[i].ItemsInvolved[0] != 0 || got[i].ItemsInvolved[1] != wantSecond {
			t.Errorf("finding %d ItemsInvolved = %v", i, got[i].ItemsInvolved)
		}
	}
	if want := "Duplicate charge detected: 'CBC' appears multiple times on same date"; got[0].Description != want {
		t.Errorf("Description = %q", got[0].Description)
	}
}

func TestDetectDuplicateDateFormats(t *testing.T) {
	bill := &model.BillRecord{LineItems: []model.LineItem{
		item("80053", "Metabolic panel", "2024-03-05", "90"),
		item("80053", "Metabolic panel", "03/05/2024", "90"),
	}}
	got := NewEngine(nil).Detect(context.Background(), bill)
	if len(got) != 1 || got[0].Type != model.DiscrepancyDuplicateCharge {
		t.Fatalf("findings = %#v, want one duplicate", got)
	}
}

func TestDetectPriceInflation(t *testing.T) {
	prices := fixedPrices{"99284": {Description: "ER visit", AvgPrice: dec("80"), HighPrice: dec("100")}}
	tests := []struct {
		name     string
		total    string
		severity model.Severity
		over     string
		found    bool
	}{
		{"well above", "160", model.SeverityHigh, "60", true},
		{"above", "120", model.SeverityMedium, "20", true},
		{"at high", "100", "", "", false},
		{"below", "90", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bill := &model.BillRecord{LineItems: []model.LineItem{item("99284", "ER Visit", "", tt.total)}}
			got := NewEngine(prices).Detect(context.Background(), bill)
			if !tt.found {
				if len(got) != 0 {
					t.Fatalf("findings = %#v, want none", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("got %d findings, want 1", len(got))
			}
			d := got[0]
			if d.Type != model.DiscrepancyPriceInflation || d.Severity != tt.severity || d.Confidence != model.ConfidenceMedium {
				t.Errorf("finding = %+v", d)
			}
			if !d.PotentialOvercharge.Equal(dec(tt.over)) {
				t.Errorf("PotentialOvercharge = %s, want %s", d.PotentialOvercharge, tt.over)
			}
			if d.Reference == nil || !d.Reference.HighPrice.Equal(dec("100")) {
				t.Errorf("Reference = %+v", d.Reference)
			}
		})
	}
}

func TestDetectPriceInflationDescriptions(t *testing.T) {
	prices := fixedPrices{"36415": {AvgPrice: dec("10"), HighPrice: dec("20")}}
	bill := &model.BillRecord{LineItems: []model.LineItem{
		item("36415", "Venipuncture", "2024-01-01", "45"),
		item("36415", "Venipuncture", "2024-01-02", "25"),
	}}
	got := NewEngine(prices).Detect(context.Background(), bill)
	if len(got) != 2 {
		t.Fatalf("got %d findings, want 2", len(got))
	}
	if want := "'Venipuncture' charged at $45.00, well above typical range ($10.00-$20.00)"; got[0].Description != want {
		t.Errorf("high description = %q", got[0].Description)
	}
	if want := "'Venipuncture' charged at $25.00, above typical high of $20.00"; got[1].Description != want {
		t.Errorf("medium description = %q", got[1].Description)
	}
}

func TestDetectPriceInflationSkips(t *testing.T) {
	prices := fixedPrices{"99284": {AvgPrice: dec("1"), HighPrice: dec("2")}}
	bill := &model.BillRecord{LineItems: []model.LineItem{
		item("", "No code", "", "900"),
		item("99284", "Zero charge", "", "0"),
		item("11111", "Unknown code", "", "900"),
	}}
	if got := NewEngine(prices).Detect(context.Background(), bill); len(got) != 0 {
		t.Fatalf("findings = %#v, want none", got)
	}
}

func TestDetectQuantityAnomaly(t *testing.T) {
	many := item("J1885", "Ketorolac", "", "60")
	many.Quantity = 6
	five := item("96374", "IV push", "", "60")
	five.Quantity = 5
	bill := &model.BillRecord{LineItems: []model.LineItem{five, many}}

	got := NewEngine(nil).Detect(context.Background(), bill)
	if len(got) != 1 {
		t.Fatalf("got %d findings, want 1", len(got))
	}
	d := got[0]
	if d.Type != model.DiscrepancyQuantityAnomaly || d.Severity != model.SeverityMedium || d.Confidence != model.ConfidenceLow {
		t.Errorf("finding = %+v", d)
	}
	if !d.PotentialOvercharge.IsZero() || len(d.ItemsInvolved) != 1 || d.ItemsInvolved[0] != 1 {
		t.Errorf("finding = %+v", d)
	}
}

func TestDetectMath(t *testing.T) {
	tests := []struct {
		name  string
		total string
		items []string
		found bool
		over  string
	}{
		{"overstated", "500", []string{"200", "250"}, true, "50"},
		{"within tolerance", "500", []string{"250", "250.5"}, false, ""},
		{"exactly one dollar", "500", []string{"499"}, false, ""},
		{"understated", "400", []string{"250", "250"}, true, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bill := &model.BillRecord{TotalBilled: decimal.NewNullDecimal(dec(tt.total))}
			for i, amt := range tt.items {
				bill.LineItems = append(bill.LineItems, item("", "Item", "2024-01-0"+string(rune('1'+i)), amt))
			}
			got := NewEngine(nil).Detect(context.Background(), bill)
			if !tt.found {
				if len(got) != 0 {
					t.Fatalf("findings = %#v, want none", got)
				}
				return
			}
			if len(got) != 1 || got[0].Type != model.DiscrepancyMathError {
				t.Fatalf("findings = %#v, want one math error", got)
			}
			d := got[0]
			if d.Severity != model.SeverityHigh || d.Confidence != model.ConfidenceHigh || len(d.ItemsInvolved) != 0 {
				t.Errorf("finding = %+v", d)
			}
			if !d.PotentialOvercharge.Equal(dec(tt.over)) {
				t.Errorf("PotentialOvercharge = %s, want %s", d.PotentialOvercharge, tt.over)
			}
		})
	}
}

func TestDetectMathDescription(t *testing.T) {
	bill := &model.BillRecord{
		TotalBilled: decimal.NewNullDecimal(dec("500")),
		LineItems:   []model.LineItem{item("", "Room", "", "450")},
	}
	got := NewEngine(nil).Detect(context.Background(), bill)
	want := "Line items total $450.00 but bill states $500.00 (difference: $50.00)"
	if len(got) != 1 || got[0].Description != want {
		t.Fatalf("findings = %#v, want %q", got, want)
	}
}

func TestDetectMathNeedsTotal(t *testing.T) {
	bill := &model.BillRecord{LineItems: []model.LineItem{item("", "Room", "", "450")}}
	if got := NewEngine(nil).Detect(context.Background(), bill); len(got) != 0 {
		t.Fatalf("findings = %#v, want none", got)
	}
}

func TestDetectOrder(t *testing.T) {
	prices := fixedPrices{"99285": {AvgPrice: dec("500"), HighPrice: dec("900")}}
	qty := item("J2405", "Ondansetron", "", "30")
	qty.Quantity = 8
	bill := &model.BillRecord{
		TotalBilled: decimal.NewNullDecimal(dec("10000")),
		LineItems: []model.LineItem{
			item("99285", "ER Visit", "2024-01-01", "2000"),
			item("99285", "ER Visit", "2024-01-01", "2000"),
			qty,
		},
	}
	got := NewEngine(prices).Detect(context.Background(), bill)
	want := []model.DiscrepancyType{
		model.DiscrepancyDuplicateCharge,
		model.DiscrepancyPriceInflation,
		model.DiscrepancyPriceInflation,
		model.DiscrepancyQuantityAnomaly,
		model.DiscrepancyMathError,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d findings, want %d: %#v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Type != want[i] {
			t.Errorf("finding %d type = %s, want %s", i, got[i].Type, want[i])
		}
	}
}
