package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"copyforge/internal/config"
	"copyforge/internal/memory"
)

var memoryFlags struct {
	campaign string
	limit    int
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Show recent learning log entries",
	Long: `Print recent learning log entries, newest first.

Usage:
  copyforge memory --campaign summer_sale --limit 10`,
	RunE: runMemory,
}

func init() {
	f := memoryCmd.Flags()
	f.StringVar(&memoryFlags.campaign, "campaign", "", "Campaign to filter on (required)")
	f.IntVar(&memoryFlags.limit, "limit", 10, "Maximum entries to print")
	_ = memoryCmd.MarkFlagRequired("campaign")
}

func runMemory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return err
	}
	log := memory.Open(cfg.Memory.Path)

	n := 0
	for e := range log.ReadRecent(memoryFlags.campaign, memoryFlags.limit) {
		n++
		fmt.Printf("%s  %s  %s\n", e.Date, e.VariantSetID, e.AdID)
		if e.Hypothesis != "" {
			fmt.Printf("    hypothesis: %s\n", e.Hypothesis)
		}
		if e.Angle != "" {
			fmt.Printf("    angle: %s\n", e.Angle)
		}
		if len(e.Generated.Headlines) > 0 {
			fmt.Printf("    headlines: %s\n", strings.Join(e.Generated.Headlines, " | "))
		}
		if e.Results != nil {
			fmt.Printf("    results: %v\n", e.Results)
		}
	}
	if n == 0 {
		fmt.Printf("No entries for campaign %q\n", memoryFlags.campaign)
	}
	return nil
}
