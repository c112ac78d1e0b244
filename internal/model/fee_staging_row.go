package model

import "github.com/google/uuid"

// FeeRow is the normalized, DB-ready representation of a single fee schedule
// entry. Fee amounts are stored as int64 cents.
type FeeRow struct {
	FeeFileID   int64
	LoadBatchID uuid.UUID

	SourceRowNumber int64
	SourceRowHash   []byte

	HCPCS       string
	Modifier    *string
	Carrier     *string
	Locality    *string
	Description *string

	NonFacFeeCents *int64
	FacFeeCents    *int64
}

// FeeRowColumns returns the ordered column names for COPY into ref.fee_schedule.
func FeeRowColumns() []string {
	return []string{
		"fee_file_id",
		"load_batch_id",
		"source_row_number",
		"source_row_hash",
		"hcpcs",
		"modifier",
		"carrier",
		"locality",
		"description",
		"non_fac_fee_cents",
		"fac_fee_cents",
	}
}

// CopyValues returns the row values in the same order as FeeRowColumns(),
// suitable for pgx CopyFromSource.
func (r *FeeRow) CopyValues() []any {
	return []any{
		r.FeeFileID,
		r.LoadBatchID,
		r.SourceRowNumber,
		r.SourceRowHash,
		r.HCPCS,
		r.Modifier,
		r.Carrier,
		r.Locality,
		r.Description,
		r.NonFacFeeCents,
		r.FacFeeCents,
	}
}
