package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/gyeh/medbill/internal/exitcode"
	"github.com/gyeh/medbill/internal/logging"
	"github.com/gyeh/medbill/internal/model"
	"github.com/gyeh/medbill/internal/pipeline"
)

var analyzeOpts struct {
	bill        string
	resolveOnly bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Enrich a bill JSON file with reference prices and print its findings",
	RunE:  runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeOpts.bill, "bill", "", "Path to a bill JSON file (required)")
	f.BoolVar(&analyzeOpts.resolveOnly, "resolve-only", false, "Only attach reference prices; skip detection")
	_ = analyzeCmd.MarkFlagRequired("bill")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	data, err := os.ReadFile(analyzeOpts.bill)
	if err != nil {
		log.Error().Err(err).Msg("failed to read bill")
		os.Exit(exitcode.UsageError)
	}
	var bill model.BillRecord
	if err := json.Unmarshal(data, &bill); err != nil {
		log.Error().Err(err).Msg("bill is not valid JSON")
		os.Exit(exitcode.ValidationError)
	}

	prices, err := buildResolver(ctx, log)
	if err != nil {
		log.Error().Err(err).Msg("fee table invalid")
		os.Exit(exitcode.ValidationError)
	}
	defer prices.Close()

	p := pipeline.New(pipeline.Deps{Prices: prices.resolver}, log)
	sess := p.Ingest(ctx, bill)
	if !analyzeOpts.resolveOnly {
		if _, err := p.Confirm(ctx, sess.ID, sess.Bill); err != nil {
			log.Error().Err(err).Msg("analysis failed")
			os.Exit(exitcode.AnalyzeError)
		}
	}

	res, err := p.Results(sess.ID)
	if err != nil {
		log.Error().Err(err).Msg("analysis failed")
		os.Exit(exitcode.AnalyzeError)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if analyzeOpts.resolveOnly {
		return enc.Encode(res.Bill)
	}
	return enc.Encode(struct {
		Bill          model.BillRecord    `json:"bill_data"`
		Discrepancies []model.Discrepancy `json:"discrepancies"`
		TotalSavings  decimal.Decimal     `json:"total_potential_savings"`
	}{res.Bill, res.Discrepancies, res.TotalPotentialSavings})
}
