package model

import "time"

// LoadSummary captures metrics from a single fee schedule load.
type LoadSummary struct {
	FilePath      string
	FileSHA256    string
	FeeFileID     int64
	LoadBatchID   string
	Activated     bool
	RowsRead      int64
	RowsStaged    int64
	RowsRejected  int64
	RowsPurged    int64
	DurationCopy  time.Duration
	DurationFinal time.Duration
	DurationTotal time.Duration
}
