package parquetread

import (
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/gyeh/medbill/internal/model"
)

// ValidateSchema checks that the Parquet schema carries a procedure code
// column and at least one fee amount column.
func ValidateSchema(schema *parquet.Schema) error {
	columns := make(map[string]bool)
	for _, field := range schema.Fields() {
		columns[strings.ToLower(field.Name())] = true
	}

	if !columns["hcpcs"] {
		return fmt.Errorf("missing required column: hcpcs")
	}

	for _, col := range model.FeeColumns {
		if columns[col] {
			return nil
		}
	}
	return fmt.Errorf("no fee columns found; need at least one of: %s",
		strings.Join(model.FeeColumns, ", "))
}

// Stats summarizes a sample of fee rows for the plan command.
type Stats struct {
	Sampled      int64
	DistinctCode int
	MissingFees  int64
	ZeroFees     int64
	TopCodes     map[string]int64
}

// Sample reads up to limit rows and collects per-code statistics without
// writing anything.
func Sample(r *Reader, limit int64) (*Stats, error) {
	st := &Stats{TopCodes: make(map[string]int64)}
	buf := make([]model.FeeScheduleRow, 256)
	for st.Sampled < limit {
		n, err := r.Read(buf)
		for i := 0; i < n && st.Sampled < limit; i++ {
			st.Sampled++
			row := &buf[i]
			st.TopCodes[strings.ToUpper(strings.TrimSpace(row.HCPCS))]++
			switch {
			case row.NonFacFee == nil && row.FacFee == nil:
				st.MissingFees++
			case isZero(row.NonFacFee) && isZero(row.FacFee):
				st.ZeroFees++
			}
		}
		if err != nil {
			if isEOF(err) {
				break
			}
			return nil, err
		}
	}
	st.DistinctCode = len(st.TopCodes)
	return st, nil
}

func isZero(v *float64) bool {
	return v == nil || *v == 0
}
