package normalize

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gyeh/medbill/internal/model"
)

// ToFeeRow converts a Parquet-read FeeScheduleRow into a DB-ready FeeRow.
// Rows without a usable code, or without any fee amount, are rejected.
func ToFeeRow(row *model.FeeScheduleRow, batchID uuid.UUID, feeFileID int64, rowNum int64) (*model.FeeRow, error) {
	code := LookupCode(row.HCPCS)
	if code == "" {
		return nil, fmt.Errorf("row %d: empty hcpcs code", rowNum)
	}
	if row.NonFacFee == nil && row.FacFee == nil {
		return nil, fmt.Errorf("row %d: no fee amounts for %s", rowNum, code)
	}
	if negative(row.NonFacFee) || negative(row.FacFee) {
		return nil, fmt.Errorf("row %d: negative fee for %s", rowNum, code)
	}

	r := &model.FeeRow{
		FeeFileID:       feeFileID,
		LoadBatchID:     batchID,
		SourceRowNumber: rowNum,

		HCPCS:       code,
		Modifier:    NormalizeCode(row.Modifier),
		Carrier:     trimmed(row.Carrier),
		Locality:    trimmed(row.Locality),
		Description: trimmed(row.Description),

		NonFacFeeCents: DollarsToCents(row.NonFacFee),
		FacFeeCents:    DollarsToCents(row.FacFee),
	}

	r.SourceRowHash = RowHashFromValues(rowNum,
		row.HCPCS,
		derefStr(row.Modifier),
		derefStr(row.Carrier),
		derefStr(row.Locality),
	)

	return r, nil
}

func negative(v *float64) bool {
	return v != nil && *v < 0
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
