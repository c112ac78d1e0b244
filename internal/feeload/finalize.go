package feeload

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	embedsql "github.com/gyeh/medbill/internal/sql"
)

// Finalize makes the loaded file visible to price lookups (activate) or marks
// it loaded but dormant, then refreshes planner statistics. Activation swaps
// the active file inside one transaction so readers never see zero or two
// active schedules.
func Finalize(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, feeFileID int64, activate bool) (time.Duration, error) {
	start := time.Now()

	if activate {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, embedsql.DeactivateOlderFeeFiles, feeFileID)
			if err != nil {
				return fmt.Errorf("deactivate older files: %w", err)
			}
			log.Info().Int64("deactivated", tag.RowsAffected()).Msg("older fee files deactivated")

			if _, err := tx.Exec(ctx, embedsql.ActivateFeeFile, feeFileID); err != nil {
				return fmt.Errorf("activate file: %w", err)
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
		log.Info().Int64("fee_file_id", feeFileID).Msg("fee file activated")
	} else {
		if err := UpdateStatus(ctx, pool, feeFileID, StatusLoaded); err != nil {
			return 0, fmt.Errorf("update status to loaded: %w", err)
		}
	}

	if _, err := pool.Exec(ctx, embedsql.AnalyzeFeeSchedule); err != nil {
		return 0, fmt.Errorf("analyze fee schedule: %w", err)
	}
	log.Info().Msg("ANALYZE complete")

	return time.Since(start), nil
}
