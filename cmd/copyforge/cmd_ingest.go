package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"copyforge/internal/config"
	"copyforge/internal/ingest"
	"copyforge/internal/memory"
)

var ingestFlags struct {
	results string
}

var ingestCmd = &cobra.Command{
	Use:   "ingest-results",
	Short: "Feed observed performance back into the learning log",
	Long: `Match post-run performance rows to variant sets by id and append the
observed metrics to the learning log.

Usage:
  copyforge ingest-results --results data/results.csv

The results CSV must carry a variant_set_id column; recognised metric
columns (impressions, clicks, conversions, spend, revenue, ctr, cpa,
roas) are ingested when present.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFlags.results, "results", "r", "", "Performance results CSV (required)")
	_ = ingestCmd.MarkFlagRequired("results")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return err
	}
	rows, err := ingest.ReadPerformance(ingestFlags.results)
	if err != nil {
		return err
	}
	matched, orphaned, err := memory.Open(cfg.Memory.Path).Ingest(rows)
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %d rows: %d matched, %d orphaned\n", len(rows), matched, orphaned)
	return nil
}
