package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLineItemUnmarshal_Coercion(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode *string
		wantQty  int
		wantErr  bool
	}{
		{"string code", `{"code":"99284","quantity":2}`, strPtr("99284"), 2, false},
		{"numeric code", `{"code":99284,"quantity":1}`, strPtr("99284"), 1, false},
		{"null code", `{"code":null}`, nil, 0, false},
		{"float quantity", `{"quantity":3.0}`, nil, 3, false},
		{"string quantity", `{"quantity":" 4 "}`, nil, 4, false},
		{"fractional quantity", `{"quantity":1.5}`, nil, 0, true},
		{"object code", `{"code":{"a":1}}`, nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var li LineItem
			err := json.Unmarshal([]byte(tt.input), &li)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if (li.Code == nil) != (tt.wantCode == nil) {
				t.Fatalf("code = %v, want %v", li.Code, tt.wantCode)
			}
			if li.Code != nil && *li.Code != *tt.wantCode {
				t.Errorf("code = %q, want %q", *li.Code, *tt.wantCode)
			}
			if li.Quantity != tt.wantQty {
				t.Errorf("quantity = %d, want %d", li.Quantity, tt.wantQty)
			}
		})
	}
}

func TestLineItemUnmarshal_KeepsOtherFields(t *testing.T) {
	var li LineItem
	input := `{"code":"A0427","description":"Ambulance","quantity":1,"unit_charge":812.5,"total_charge":"812.50","date_of_service":"2024-01-01","category":"procedure","expected_charge":null}`
	if err := json.Unmarshal([]byte(input), &li); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if li.Description != "Ambulance" {
		t.Errorf("description = %q", li.Description)
	}
	if !li.TotalCharge.Equal(decimal.RequireFromString("812.50")) {
		t.Errorf("total_charge = %s", li.TotalCharge)
	}
	if li.DateOfService == nil || *li.DateOfService != "2024-01-01" {
		t.Errorf("date_of_service = %v", li.DateOfService)
	}
	if li.ExpectedCharge.Valid {
		t.Error("expected_charge should be null")
	}
}

func TestBillNormalize(t *testing.T) {
	b := BillRecord{
		ProviderName: strPtr("   "),
		LineItems: []LineItem{
			{Code: strPtr(" "), Description: "  Lab panel ", Category: "LAB"},
			{Quantity: 3, Category: "spa day"},
		},
	}
	b.Normalize()

	if b.ProviderName != nil {
		t.Errorf("blank provider should be nil, got %q", *b.ProviderName)
	}
	first := b.LineItems[0]
	if first.Code != nil {
		t.Error("blank code should be nil")
	}
	if first.Description != "Lab panel" {
		t.Errorf("description = %q", first.Description)
	}
	if first.Quantity != 1 {
		t.Errorf("zero quantity should become 1, got %d", first.Quantity)
	}
	if first.Category != CategoryLab {
		t.Errorf("category = %q, want lab", first.Category)
	}
	if b.LineItems[1].Category != CategoryOther {
		t.Errorf("unknown category = %q, want other", b.LineItems[1].Category)
	}
	if b.LineItems[1].Quantity != 3 {
		t.Errorf("quantity changed to %d", b.LineItems[1].Quantity)
	}
}

func TestBillValidate(t *testing.T) {
	good := BillRecord{
		TotalBilled: decimal.NewNullDecimal(decimal.NewFromInt(100)),
		LineItems: []LineItem{
			{Description: "ok", Quantity: 1, TotalCharge: decimal.NewFromInt(100)},
		},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid bill rejected: %v", err)
	}

	negCharge := good.Clone()
	negCharge.LineItems[0].TotalCharge = decimal.NewFromInt(-5)
	if err := negCharge.Validate(); err == nil {
		t.Error("negative total_charge accepted")
	}

	negQty := good.Clone()
	negQty.LineItems[0].Quantity = -1
	if err := negQty.Validate(); err == nil {
		t.Error("negative quantity accepted")
	}

	negTotal := good.Clone()
	negTotal.TotalBilled = decimal.NewNullDecimal(decimal.NewFromInt(-1))
	if err := negTotal.Validate(); err == nil {
		t.Error("negative total_billed accepted")
	}

	if good.LineItems[0].TotalCharge.IsNegative() {
		t.Error("Clone shared line items with the original")
	}
}

func TestLineItemQty(t *testing.T) {
	for _, tc := range []struct{ in, want int }{{0, 1}, {-2, 1}, {1, 1}, {7, 7}} {
		li := LineItem{Quantity: tc.in}
		if got := li.Qty(); got != tc.want {
			t.Errorf("Qty(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestAccount(t *testing.T) {
	var b BillRecord
	if b.Account() != "Unknown" {
		t.Errorf("Account() = %q, want Unknown", b.Account())
	}
	b.AccountNumber = strPtr("A-17")
	if b.Account() != "A-17" {
		t.Errorf("Account() = %q", b.Account())
	}
}

func TestDecimalMarshalsAsNumber(t *testing.T) {
	d := Discrepancy{Type: DiscrepancyMathError, PotentialOvercharge: decimal.RequireFromString("50.00"), ItemsInvolved: []int{}}
	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["potential_overcharge"].(float64); !ok {
		t.Errorf("potential_overcharge encoded as %T, want number", m["potential_overcharge"])
	}
	if _, ok := m["reference"]; ok {
		t.Error("nil reference should be omitted")
	}
}

func TestTotalOvercharge(t *testing.T) {
	findings := []Discrepancy{
		{PotentialOvercharge: decimal.RequireFromString("10.25")},
		{PotentialOvercharge: decimal.Zero},
		{PotentialOvercharge: decimal.RequireFromString("39.75")},
	}
	if got := TotalOvercharge(findings); !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("TotalOvercharge = %s, want 50", got)
	}
	if got := TotalOvercharge(nil); !got.IsZero() {
		t.Errorf("TotalOvercharge(nil) = %s", got)
	}
	issues := Issues(findings)
	if len(issues) != 3 || !issues[0].PotentialOvercharge.Equal(findings[0].PotentialOvercharge) {
		t.Errorf("Issues = %+v", issues)
	}
}

func strPtr(s string) *string { return &s }
