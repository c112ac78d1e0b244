package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Money goes over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// LineItem is one billed charge within a bill.
type LineItem struct {
	Code          *string         `json:"code"`
	Description   string          `json:"description"`
	Quantity      int             `json:"quantity" validate:"gte=0"`
	UnitCharge    decimal.Decimal `json:"unit_charge" validate:"gte=0"`
	TotalCharge   decimal.Decimal `json:"total_charge" validate:"gte=0"`
	DateOfService *string         `json:"date_of_service"`
	Category      Category        `json:"category"`

	// Derived by reference-price enrichment. Null means no reference data.
	ExpectedCharge        decimal.NullDecimal `json:"expected_charge"`
	ExpectedChargePerUnit decimal.NullDecimal `json:"expected_charge_per_unit"`
	HighPricePerUnit      decimal.NullDecimal `json:"high_price_per_unit"`
}

// BillRecord is the structured form of one medical bill. Line item order is
// document order and is significant for position reporting.
type BillRecord struct {
	PatientName           *string             `json:"patient_name"`
	ProviderName          *string             `json:"provider_name"`
	BillingDate           *string             `json:"billing_date"`
	AccountNumber         *string             `json:"account_number"`
	TotalBilled           decimal.NullDecimal `json:"total_billed" validate:"omitempty,gte=0"`
	InsuranceAdjustments  decimal.NullDecimal `json:"insurance_adjustments"`
	PatientResponsibility decimal.NullDecimal `json:"patient_responsibility"`
	LineItems             []LineItem          `json:"line_items" validate:"dive"`
}

// Qty returns the billed quantity, treating a missing or zero quantity as 1.
func (li *LineItem) Qty() int {
	if li.Quantity < 1 {
		return 1
	}
	return li.Quantity
}

// CodeValue returns the raw code, or "" when absent.
func (li *LineItem) CodeValue() string {
	if li.Code == nil {
		return ""
	}
	return *li.Code
}

// ClearEnrichment resets the derived reference-price fields.
func (li *LineItem) ClearEnrichment() {
	li.ExpectedCharge = decimal.NullDecimal{}
	li.ExpectedChargePerUnit = decimal.NullDecimal{}
	li.HighPricePerUnit = decimal.NullDecimal{}
}

// UnmarshalJSON accepts codes given as JSON numbers and quantities given as
// whole-valued floats or numeric strings, both of which extraction produces.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	type plain LineItem
	aux := struct {
		*plain
		Code     json.RawMessage `json:"code"`
		Quantity json.RawMessage `json:"quantity"`
	}{plain: (*plain)(li)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	code, err := decodeCode(aux.Code)
	if err != nil {
		return fmt.Errorf("line item code: %w", err)
	}
	li.Code = code

	qty, err := decodeQuantity(aux.Quantity)
	if err != nil {
		return fmt.Errorf("line item quantity: %w", err)
	}
	li.Quantity = qty
	return nil
}

func decodeCode(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return &s, nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("unsupported value %s", raw)
		}
		s := n.String()
		return &s, nil
	}
}

func decodeQuantity(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return 0, nil
		}
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("unsupported value %s", raw)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("fractional quantity %s", raw)
	}
	return int(f), nil
}

// Normalize coerces loosely-populated fields into their canonical shape:
// blank strings become null, a zero quantity becomes 1, and unknown
// categories become "other".
func (b *BillRecord) Normalize() {
	b.PatientName = blankToNil(b.PatientName)
	b.ProviderName = blankToNil(b.ProviderName)
	b.BillingDate = blankToNil(b.BillingDate)
	b.AccountNumber = blankToNil(b.AccountNumber)

	for i := range b.LineItems {
		li := &b.LineItems[i]
		li.Code = blankToNil(li.Code)
		li.DateOfService = blankToNil(li.DateOfService)
		li.Description = strings.TrimSpace(li.Description)
		if li.Quantity == 0 {
			li.Quantity = 1
		}
		if c, ok := CategoryByName(string(li.Category)); ok {
			li.Category = c
		} else {
			li.Category = CategoryOther
		}
	}
}

// Clone returns a copy whose line items can be mutated independently.
func (b BillRecord) Clone() BillRecord {
	if b.LineItems != nil {
		items := make([]LineItem, len(b.LineItems))
		copy(items, b.LineItems)
		b.LineItems = items
	}
	return b
}

// Account returns the account number, or "Unknown" when absent.
func (b *BillRecord) Account() string {
	if b.AccountNumber == nil || *b.AccountNumber == "" {
		return "Unknown"
	}
	return *b.AccountNumber
}

func blankToNil(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
