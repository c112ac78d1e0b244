package feeload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/medbill/internal/normalize"
	"github.com/gyeh/medbill/internal/parquetread"
	embedsql "github.com/gyeh/medbill/internal/sql"
)

// PreflightResult holds all context resolved during the preflight phase.
type PreflightResult struct {
	// FilePath is the original path passed to Preflight, stored as-is.
	FilePath string
	// FileSHA256 is the hex-encoded SHA-256 digest of the file.
	FileSHA256 string
	// FileSize is the file size in bytes from os.Stat.
	FileSize int64
	// FeeFileID is the ref.fee_files primary key, inserted or looked up by sha256.
	FeeFileID int64
	// LoadBatchID tags every row staged by this run.
	LoadBatchID uuid.UUID
	// NumRows is the row count reported by the Parquet metadata.
	NumRows int64
	// AlreadyLoaded is true when the file was previously loaded or activated
	// and force mode is off.
	AlreadyLoaded bool
}

// Preflight hashes the file, validates its schema, and registers it in
// ref.fee_files. A forced reload of a known file discards its earlier rows.
func Preflight(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, filePath string, force bool) (*PreflightResult, error) {
	start := time.Now()

	sha, err := normalize.FileHash(filePath)
	if err != nil {
		return nil, fmt.Errorf("preflight hash: %w", err)
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("preflight stat: %w", err)
	}

	reader, err := parquetread.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("preflight open: %w", err)
	}
	defer reader.Close()

	if err := parquetread.ValidateSchema(reader.Schema()); err != nil {
		return nil, fmt.Errorf("preflight validate: %w", err)
	}
	numRows := reader.NumRows()

	log.Info().
		Str("file", filepath.Base(filePath)).
		Str("sha256", sha).
		Int64("rows", numRows).
		Dur("duration", time.Since(start)).
		Msg("preflight complete")

	feeFileID, alreadyLoaded, err := registerFeeFile(ctx, pool, filePath, sha, stat.Size(), numRows, force)
	if err != nil {
		return nil, fmt.Errorf("preflight register file: %w", err)
	}

	return &PreflightResult{
		FilePath:      filePath,
		FileSHA256:    sha,
		FileSize:      stat.Size(),
		FeeFileID:     feeFileID,
		LoadBatchID:   uuid.New(),
		NumRows:       numRows,
		AlreadyLoaded: alreadyLoaded,
	}, nil
}

func registerFeeFile(ctx context.Context, pool *pgxpool.Pool, filePath, sha string, fileSize, numRows int64, force bool) (int64, bool, error) {
	var feeFileID int64
	err := pool.QueryRow(ctx, embedsql.RegisterFeeFile,
		filepath.Base(filePath), sha, fileSize, numRows,
	).Scan(&feeFileID)
	if err == nil {
		return feeFileID, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("register fee file: %w", err)
	}

	// ON CONFLICT DO NOTHING returned no row: the file is already known.
	var status string
	if err := pool.QueryRow(ctx, embedsql.LookupFeeFile, sha).Scan(&feeFileID, &status); err != nil {
		return 0, false, fmt.Errorf("lookup existing fee file: %w", err)
	}

	if !force && (status == StatusActive || status == StatusLoaded) {
		return feeFileID, true, nil
	}

	if _, err := pool.Exec(ctx, embedsql.DeleteFeeFileRows, feeFileID); err != nil {
		return 0, false, fmt.Errorf("clear previous rows: %w", err)
	}
	if err := UpdateStatus(ctx, pool, feeFileID, StatusPending); err != nil {
		return 0, false, fmt.Errorf("reset fee file status: %w", err)
	}
	return feeFileID, false, nil
}
