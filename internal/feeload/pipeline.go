// Package feeload bulk-loads fee schedule Parquet files into the reference
// price store.
package feeload

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/medbill/internal/config"
	"github.com/gyeh/medbill/internal/model"
)

// Fee file lifecycle states stored in ref.fee_files.status.
const (
	StatusPending  = "pending"
	StatusStaging  = "staging"
	StatusLoaded   = "loaded"
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusFailed   = "failed"
)

// Phases reported by PipelineError.
const (
	PhasePreflight = "preflight"
	PhaseStage     = "stage"
	PhaseFinalize  = "finalize"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Run executes the full load pipeline: preflight → stage → finalize → cleanup.
func Run(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, cfg *config.Config) (*model.LoadSummary, error) {
	totalStart := time.Now()

	log.Info().Str("file", cfg.FilePath).Msg("starting preflight")
	pf, err := Preflight(ctx, pool, log, cfg.FilePath, cfg.Force)
	if err != nil {
		return nil, &PipelineError{Phase: PhasePreflight, Err: err}
	}

	if pf.AlreadyLoaded {
		log.Info().
			Int64("fee_file_id", pf.FeeFileID).
			Str("sha256", pf.FileSHA256).
			Msg("file already loaded, skipping (use --force to reload)")
		return &model.LoadSummary{
			FilePath:      pf.FilePath,
			FileSHA256:    pf.FileSHA256,
			FeeFileID:     pf.FeeFileID,
			LoadBatchID:   pf.LoadBatchID.String(),
			DurationTotal: time.Since(totalStart),
		}, nil
	}

	if err := UpdateStatus(ctx, pool, pf.FeeFileID, StatusStaging); err != nil {
		return nil, &PipelineError{Phase: PhaseStage, Err: err}
	}

	stageResult, err := Stage(ctx, pool, log, pf)
	if err != nil {
		markFailed(ctx, pool, log, pf.FeeFileID)
		return nil, &PipelineError{Phase: PhaseStage, Err: err}
	}

	finalizeDur, err := Finalize(ctx, pool, log, pf.FeeFileID, cfg.Activate)
	if err != nil {
		markFailed(ctx, pool, log, pf.FeeFileID)
		return nil, &PipelineError{Phase: PhaseFinalize, Err: err}
	}

	var purged int64
	if cfg.Activate && !cfg.KeepInactive {
		purged, err = Cleanup(ctx, pool, log)
		if err != nil {
			log.Warn().Err(err).Msg("inactive fee row cleanup failed (non-fatal)")
		}
	}

	summary := &model.LoadSummary{
		FilePath:      pf.FilePath,
		FileSHA256:    pf.FileSHA256,
		FeeFileID:     pf.FeeFileID,
		LoadBatchID:   pf.LoadBatchID.String(),
		Activated:     cfg.Activate,
		RowsRead:      stageResult.RowsRead,
		RowsStaged:    stageResult.RowsStaged,
		RowsRejected:  stageResult.RowsRejected,
		RowsPurged:    purged,
		DurationCopy:  stageResult.Duration,
		DurationFinal: finalizeDur,
		DurationTotal: time.Since(totalStart),
	}

	log.Info().
		Int64("rows_read", summary.RowsRead).
		Int64("rows_staged", summary.RowsStaged).
		Int64("rows_rejected", summary.RowsRejected).
		Int64("rows_purged", summary.RowsPurged).
		Bool("activated", summary.Activated).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("fee load complete")

	return summary, nil
}

func markFailed(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, feeFileID int64) {
	if err := UpdateStatus(context.WithoutCancel(ctx), pool, feeFileID, StatusFailed); err != nil {
		log.Warn().Err(err).Int64("fee_file_id", feeFileID).Msg("could not mark fee file failed")
	}
}
