// Package export writes the run artifacts: the review CSV, the upload TSV,
// the handoff CSV, and the run report. Field values are sanitized so a
// candidate with embedded newlines or tabs can never break the tabular
// schema, and writers produce identical bytes for identical input.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"copyforge/internal/ads"
)

// VariantRow is one flattened export row, derived from a VariantSet member.
type VariantRow struct {
	VariantSetID string
	Campaign     string
	AdGroup      string
	AdID         string
	Strategy     string
	Angle        string
	Headline     string
	Description  string
	Tag          string
}

// Sanitize collapses internal newlines and tabs to single spaces and trims
// the result, keeping every value safe for one-line tabular output.
func Sanitize(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(s)
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}

// Rows flattens variant sets into export rows, one per variant.
func Rows(sets []ads.VariantSet) []VariantRow {
	var rows []VariantRow
	for _, vs := range sets {
		for _, v := range vs.Variants {
			rows = append(rows, VariantRow{
				VariantSetID: vs.ID,
				Campaign:     vs.Campaign,
				AdGroup:      vs.AdGroup,
				AdID:         vs.AdID,
				Strategy:     vs.Strategy,
				Angle:        vs.Angle,
				Headline:     v.Headline,
				Description:  v.Description,
				Tag:          v.Tag,
			})
		}
	}
	return rows
}

// WriteNewAdsCSV writes the full review sheet with one row per variant.
func WriteNewAdsCSV(path string, rows []VariantRow) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"campaign", "ad_group", "ad_id", "variant_set_id", "angle", "headline", "description", "tag", "strategy"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.Campaign, r.AdGroup, r.AdID, r.VariantSetID, r.Angle,
			Sanitize(r.Headline), Sanitize(r.Description), r.Tag, Sanitize(r.Strategy),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteVariationsTSV writes the upload artifact. The schema is fixed:
// columns H1, DESC, TAG in that order, tab-delimited, no byte-order mark,
// every value normalized to a single trimmed line.
func WriteVariationsTSV(path string, rows []VariantRow) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var sb strings.Builder
	sb.WriteString("H1\tDESC\tTAG\n")
	for _, r := range rows {
		sb.WriteString(Sanitize(r.Headline))
		sb.WriteByte('\t')
		sb.WriteString(Sanitize(r.Description))
		sb.WriteByte('\t')
		sb.WriteString(r.Tag)
		sb.WriteByte('\n')
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("write tsv: %w", err)
	}
	return nil
}

// WriteHandoffCSV writes the tracking sheet that maps tags back to variant
// sets, with blank status/notes columns for the account manager to fill in.
func WriteHandoffCSV(path string, rows []VariantRow) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"variant_set_id", "tag", "h1", "desc", "status", "notes"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.VariantSetID, r.Tag, Sanitize(r.Headline), Sanitize(r.Description), "", ""}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteReport writes the human-readable run report.
func WriteReport(path, report string) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func create(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	return f, nil
}
