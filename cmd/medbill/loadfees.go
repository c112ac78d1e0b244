package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/medbill/internal/db"
	"github.com/gyeh/medbill/internal/exitcode"
	"github.com/gyeh/medbill/internal/feeload"
	"github.com/gyeh/medbill/internal/logging"
)

var loadOpts struct {
	file         string
	activate     bool
	force        bool
	keepInactive bool
}

var loadFeesCmd = &cobra.Command{
	Use:   "load-fees",
	Short: "Load a fee schedule Parquet file into the database",
	RunE:  runLoadFees,
}

func init() {
	f := loadFeesCmd.Flags()
	f.StringVar(&loadOpts.file, "file", "", "Path to fee schedule Parquet file (required)")
	f.BoolVar(&loadOpts.activate, "activate", false, "Make this file the active fee schedule")
	f.BoolVar(&loadOpts.force, "force", false, "Reload even if the file SHA-256 was already loaded")
	f.BoolVar(&loadOpts.keepInactive, "keep-inactive", false, "Keep rows of deactivated files after activation")
	_ = loadFeesCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(loadFeesCmd)
}

func runLoadFees(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	cfg.FilePath = loadOpts.file
	cfg.Activate = loadOpts.activate
	cfg.Force = loadOpts.force
	cfg.KeepInactive = loadOpts.keepInactive

	if err := cfg.ValidateLoad(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN, 0)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	summary, err := feeload.Run(ctx, pool, log, cfg)
	if err != nil {
		var pe *feeload.PipelineError
		if errors.As(err, &pe) {
			log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("fee load failed")
			switch pe.Phase {
			case feeload.PhasePreflight:
				os.Exit(exitcode.ValidationError)
			case feeload.PhaseStage:
				os.Exit(exitcode.CopyError)
			default:
				os.Exit(exitcode.FinalizeError)
			}
		}
		log.Error().Err(err).Msg("fee load failed")
		os.Exit(exitcode.FinalizeError)
	}

	if summary.RowsStaged == 0 && summary.RowsRead == 0 {
		fmt.Printf("Skipped: %s already loaded (fee file %d)\n", summary.FilePath, summary.FeeFileID)
		return nil
	}
	fmt.Printf("Load complete: %d rows read, %d staged, %d rejected, %d purged, active=%t (%.1fs)\n",
		summary.RowsRead, summary.RowsStaged, summary.RowsRejected, summary.RowsPurged,
		summary.Activated, summary.DurationTotal.Seconds())
	return nil
}
