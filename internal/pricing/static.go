package pricing

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/medbill/internal/model"
	"github.com/gyeh/medbill/internal/normalize"
)

//go:embed static_fees.yaml
var defaultStaticFees []byte

type staticFile struct {
	Fees map[string]staticEntry `yaml:"fees"`
}

type staticEntry struct {
	Description string  `yaml:"description"`
	AvgPrice    float64 `yaml:"avg_price"`
	HighPrice   float64 `yaml:"high_price"`
}

// StaticTable is the secondary source: a fixed code → price mapping.
type StaticTable struct {
	entries map[string]model.PriceReference
}

// DefaultStaticTable returns the table compiled into the binary.
func DefaultStaticTable() (*StaticTable, error) {
	return ParseStaticTable(defaultStaticFees)
}

// LoadStaticTable reads a YAML fee table from path.
func LoadStaticTable(path string) (*StaticTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fee table: %w", err)
	}
	return ParseStaticTable(data)
}

// ParseStaticTable parses a YAML fee table. Keys are normalized the same way
// billed codes are, and every entry must satisfy 0 < avg_price <= high_price.
func ParseStaticTable(data []byte) (*StaticTable, error) {
	var f staticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fee table: %w", err)
	}

	t := &StaticTable{entries: make(map[string]model.PriceReference, len(f.Fees))}
	for raw, e := range f.Fees {
		code := normalize.LookupCode(raw)
		if code == "" {
			return nil, fmt.Errorf("fee table: empty code %q", raw)
		}
		ref := model.PriceReference{
			Description: e.Description,
			AvgPrice:    normalize.Money(decimal.NewFromFloat(e.AvgPrice)),
			HighPrice:   normalize.Money(decimal.NewFromFloat(e.HighPrice)),
		}
		if !ref.Valid() || ref.HighPrice.LessThan(ref.AvgPrice) {
			return nil, fmt.Errorf("fee table: code %s needs 0 < avg_price <= high_price", code)
		}
		if _, dup := t.entries[code]; dup {
			return nil, fmt.Errorf("fee table: code %s listed twice", code)
		}
		t.entries[code] = ref
	}
	return t, nil
}

func (t *StaticTable) Name() string { return "static" }

// Len returns the number of codes in the table.
func (t *StaticTable) Len() int { return len(t.entries) }

func (t *StaticTable) Lookup(_ context.Context, code string) (*model.PriceReference, error) {
	ref, ok := t.entries[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &ref, nil
}
