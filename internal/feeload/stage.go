package feeload

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/medbill/internal/db"
	"github.com/gyeh/medbill/internal/model"
	"github.com/gyeh/medbill/internal/normalize"
	"github.com/gyeh/medbill/internal/parquetread"
	embedsql "github.com/gyeh/medbill/internal/sql"
)

const readBatchSize = 1024

// StageResult holds metrics from the staging phase.
type StageResult struct {
	RowsRead     int64
	RowsStaged   int64
	RowsRejected int64
	Duration     time.Duration
}

// Stage streams rows from the Parquet file, normalizes them, and COPY-loads
// them into ref.fee_schedule via a channel-backed CopyFromSource.
func Stage(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, pf *PreflightResult) (*StageResult, error) {
	start := time.Now()

	reader, err := parquetread.Open(pf.FilePath)
	if err != nil {
		return nil, fmt.Errorf("stage open: %w", err)
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan *model.FeeRow, readBatchSize)
	errCh := make(chan error, 1)

	var rowsRead, rowsRejected int64

	// Producer: read Parquet → normalize → push to channel.
	go func() {
		defer close(ch)
		buf := make([]model.FeeScheduleRow, readBatchSize)
		var rowNum int64

		for {
			n, readErr := reader.Read(buf)
			for i := 0; i < n; i++ {
				rowNum++
				rowsRead++

				row, normErr := normalize.ToFeeRow(&buf[i], pf.LoadBatchID, pf.FeeFileID, rowNum)
				if normErr != nil {
					rowsRejected++
					log.Debug().Err(normErr).Int64("row", rowNum).Msg("row rejected")
					continue
				}

				select {
				case ch <- row:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				errCh <- fmt.Errorf("read parquet at row %d: %w", rowNum, readErr)
				return
			}
		}
		errCh <- nil
	}()

	source := db.NewChannelSource(ch)
	rowsStaged, copyErr := pool.CopyFrom(ctx,
		pgx.Identifier{"ref", "fee_schedule"},
		model.FeeRowColumns(),
		source,
	)

	// A failed COPY stops reading the channel; release the producer.
	if copyErr != nil {
		cancel()
	}
	prodErr := <-errCh
	if copyErr != nil {
		return nil, fmt.Errorf("stage copy: %w", copyErr)
	}
	if prodErr != nil {
		return nil, fmt.Errorf("stage producer: %w", prodErr)
	}

	dur := time.Since(start)
	log.Info().
		Int64("rows_read", rowsRead).
		Int64("rows_staged", rowsStaged).
		Int64("rows_rejected", rowsRejected).
		Str("duration", dur.String()).
		Float64("rows_per_sec", float64(rowsStaged)/dur.Seconds()).
		Msg("staging complete")

	return &StageResult{
		RowsRead:     rowsRead,
		RowsStaged:   rowsStaged,
		RowsRejected: rowsRejected,
		Duration:     dur,
	}, nil
}

// UpdateStatus updates the fee file status.
func UpdateStatus(ctx context.Context, pool *pgxpool.Pool, feeFileID int64, status string) error {
	_, err := pool.Exec(ctx, embedsql.UpdateFeeFileStatus, feeFileID, status)
	return err
}
