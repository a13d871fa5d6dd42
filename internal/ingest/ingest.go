// Package ingest reads the CSV inputs: the ad performance export that feeds
// selection, and the post-run results file that feeds the learning log.
// Missing required columns fail fast with every missing name listed; bad
// numeric cells coerce to zero rather than killing a 10k-row import.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"copyforge/internal/ads"
	"copyforge/internal/logging"
	"copyforge/internal/memory"
)

// SchemaError reports every required column the input is missing.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("input missing required columns: %s", strings.Join(e.Missing, ", "))
}

var requiredAdColumns = []string{"campaign", "ad_group", "ad_id", "headline", "description"}

// ReadAds parses an ad performance CSV. Headers are matched
// case-insensitively and "cost" is accepted as an alias for "spend".
// Unknown columns are ignored.
func ReadAds(path string) ([]ads.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return parseAds(f)
}

func parseAds(r io.Reader) ([]ads.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := indexHeader(header)
	if err := checkRequired(col, requiredAdColumns); err != nil {
		return nil, err
	}

	log := logging.New("ingest")
	var records []ads.Record
	rowNum := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			log.Warn("skipping malformed row", "row", rowNum, "error", err)
			continue
		}
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		spend := get("spend")
		if spend == "" {
			spend = get("cost")
		}
		records = append(records, ads.Record{
			Campaign:    get("campaign"),
			AdGroup:     get("ad_group"),
			AdID:        get("ad_id"),
			Headline:    get("headline"),
			Description: get("description"),
			Impressions: parseInt(log, rowNum, "impressions", get("impressions")),
			Clicks:      parseInt(log, rowNum, "clicks", get("clicks")),
			Conversions: parseFloat(log, rowNum, "conversions", get("conversions")),
			Spend:       parseFloat(log, rowNum, "spend", spend),
			Revenue:     parseFloat(log, rowNum, "revenue", get("revenue")),
		})
	}
	return records, nil
}

// ReadPerformance parses a post-run results CSV into rows for memory
// ingestion. Only variant_set_id is required; every recognised metric
// column present becomes a results key.
func ReadPerformance(path string) ([]memory.PerformanceRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := indexHeader(header)
	if err := checkRequired(col, []string{"variant_set_id"}); err != nil {
		return nil, err
	}

	metricCols := []string{"impressions", "clicks", "conversions", "spend", "revenue", "ctr", "cpa", "roas"}
	log := logging.New("ingest")
	var rows []memory.PerformanceRow
	rowNum := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			log.Warn("skipping malformed row", "row", rowNum, "error", err)
			continue
		}
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		metrics := make(map[string]float64)
		for _, m := range metricCols {
			if v := get(m); v != "" {
				metrics[m] = parseFloat(log, rowNum, m, v)
			}
		}
		rows = append(rows, memory.PerformanceRow{
			VariantSetID: get("variant_set_id"),
			Metrics:      metrics,
			Campaign:     get("campaign"),
			AdGroup:      get("ad_group"),
			AdID:         get("ad_id"),
			Angle:        get("angle"),
			Notes:        get("notes"),
		})
	}
	return rows, nil
}

func indexHeader(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := col[name]; !dup {
			col[name] = i
		}
	}
	return col
}

func checkRequired(col map[string]int, required []string) error {
	var missing []string
	for _, name := range required {
		if _, ok := col[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

func parseInt(log *slog.Logger, row int, field, s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Exports sometimes format counts as floats.
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			return int(f)
		}
		log.Warn("bad numeric cell, using 0", "row", row, "column", field, "value", s)
		return 0
	}
	return n
}

func parseFloat(log *slog.Logger, row int, field, s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Warn("bad numeric cell, using 0", "row", row, "column", field, "value", s)
		return 0
	}
	return f
}
