package model

// FeeScheduleRow mirrors the Parquet schema for a single fee schedule entry.
// Fee amounts are float64 dollars matching the Parquet representation; they
// are converted to integer cents during normalization.
type FeeScheduleRow struct {
	HCPCS       string  `parquet:"hcpcs"`
	Modifier    *string `parquet:"modifier,optional"`
	Carrier     *string `parquet:"carrier,optional"`
	Locality    *string `parquet:"locality,optional"`
	Description *string `parquet:"description,optional"`

	// Non-facility and facility fee amounts in dollars.
	NonFacFee *float64 `parquet:"non_fac_fee,optional"`
	FacFee    *float64 `parquet:"fac_fee,optional"`
}

// FeeColumns are the Parquet columns that carry a fee amount.
var FeeColumns = []string{"non_fac_fee", "fac_fee"}
