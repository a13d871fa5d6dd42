package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"copyforge/internal/cache"
	"copyforge/internal/config"
	"copyforge/internal/ingest"
	"copyforge/internal/logging"
	"copyforge/internal/memory"
	"copyforge/internal/pipeline"
	"copyforge/internal/provider"
)

var runFlags struct {
	input  string
	outDir string
	mode   string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full copy generation pipeline",
	Long: `Run selection, generation, validation, dedup and export over one
performance CSV.

Usage:
  copyforge run --input data/ads.csv --out output            # mock backend
  copyforge run --input data/ads.csv --out output --mode live

Live mode calls the Anthropic API and reads the key from the
ANTHROPIC_API_KEY environment variable.`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.input, "input", "i", "", "Ad performance CSV (required)")
	f.StringVarP(&runFlags.outDir, "out", "o", "output", "Output directory for export artifacts")
	f.StringVar(&runFlags.mode, "mode", "dry", "Backend mode: dry (deterministic mock) or live")
	_ = runCmd.MarkFlagRequired("input")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return err
	}
	log := logging.New("cli")

	records, err := ingest.ReadAds(runFlags.input)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no records in %s", runFlags.input)
	}

	backend, stats, err := buildBackend(cfg)
	if err != nil {
		return err
	}

	var store *cache.Store
	if cfg.Cache.Enabled {
		store, err = cache.Open(cfg.Cache.Path)
		if err != nil {
			log.Warn("cache disabled", "error", err)
		} else {
			defer store.Close()
		}
	}

	runner, err := pipeline.New(pipeline.Options{
		Config:  cfg,
		Backend: backend,
		Memory:  memory.Open(cfg.Memory.Path),
		Cache:   store,
		Stats:   stats,
		OutDir:  runFlags.outDir,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := runner.Run(ctx, records)
	if err != nil {
		return err
	}

	c := sum.Counters
	log.Info("run complete",
		"run_id", sum.RunID,
		"selected", c.Selected,
		"generated", c.Generated,
		"valid", c.Valid,
		"rejected", c.Rejected,
		"duplicates_removed", c.DuplicatesRemoved,
		"variant_sets", c.VariantSets,
		"variants", c.Variants,
		"backend_calls", c.BackendCalls,
		"backend_retries", c.BackendRetries)
	fmt.Printf("Run %s: %d variant sets, %d variants written to %s\n",
		sum.RunID, c.VariantSets, c.Variants, runFlags.outDir)
	return nil
}

// buildBackend assembles the provider stack for the selected mode. The call
// budget sits closest to the real backend so every API call, retried or not,
// counts against the spend cap; exhaustion surfaces as a fatal error the
// retrier passes straight through.
func buildBackend(cfg config.Config) (provider.Provider, func() (int64, int64), error) {
	switch runFlags.mode {
	case "dry":
		budget := provider.NewBudgeted(provider.NewMock(), cfg.Budget.MaxCallsPerRun)
		return budget, func() (int64, int64) { return budget.Calls(), 0 }, nil
	case "live":
		live, err := provider.NewAnthropic(cfg.Provider, cfg.Runtime.Timeout())
		if err != nil {
			return nil, nil, err
		}
		budget := provider.NewBudgeted(live, cfg.Budget.MaxCallsPerRun)
		retrier := provider.NewRetrier(budget, cfg.Retry, logging.New("provider"))
		return retrier, func() (int64, int64) { return budget.Calls(), retrier.Retries() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown mode %q (want dry or live)", runFlags.mode)
	}
}
