package feeload

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	embedsql "github.com/gyeh/medbill/internal/sql"
)

// Cleanup deletes fee rows belonging to inactive files and returns the count.
func Cleanup(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) (int64, error) {
	start := time.Now()

	tag, err := pool.Exec(ctx, embedsql.PurgeInactiveFeeRows)
	if err != nil {
		return 0, err
	}

	log.Info().
		Int64("rows_deleted", tag.RowsAffected()).
		Dur("duration", time.Since(start)).
		Msg("inactive fee rows purged")

	return tag.RowsAffected(), nil
}
