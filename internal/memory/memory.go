// Package memory is the append-only learning log. Each run appends one JSONL
// entry per variant set; later performance ingestion appends enrichment
// entries that readers resolve by variant-set id. The store never rewrites
// lines in place, and readers treat any unparsable line as skippable, never
// fatal.
package memory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	"copyforge/internal/logging"
)

// Generated holds the copy produced in one run for one variant set.
type Generated struct {
	Headlines    []string `json:"headlines"`
	Descriptions []string `json:"descriptions"`
}

// Entry is one learning-log record. Results is nil until performance data
// for the variant set is ingested.
type Entry struct {
	Date         string             `json:"date"` // RFC3339 UTC
	Campaign     string             `json:"campaign"`
	AdGroup      string             `json:"ad_group"`
	AdID         string             `json:"ad_id"`
	Hypothesis   string             `json:"hypothesis"`
	Angle        string             `json:"angle"`
	Tag          string             `json:"tag"`
	VariantSetID string             `json:"variant_set_id"`
	Generated    Generated          `json:"generated"`
	Notes        string             `json:"notes"`
	Results      map[string]float64 `json:"results,omitempty"`
}

// PerformanceRow is one post-run observation to ingest, matched to an
// existing entry by exact variant-set id.
type PerformanceRow struct {
	VariantSetID string
	Metrics      map[string]float64 // ctr, cpa, roas, impressions, clicks, conversions
	Campaign     string
	AdGroup      string
	AdID         string
	Angle        string
	Notes        string
}

// Log is a file-backed JSONL store. Appends are serialized by an internal
// mutex; the orchestrator additionally funnels all run appends through a
// single goroutine, so parallel generation never interleaves writes.
type Log struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// Open returns a log bound to path. The file is created lazily on first
// append.
func Open(path string) *Log {
	return &Log{path: path, now: func() time.Time { return time.Now().UTC() }}
}

// Append writes one entry as a single JSONL line. The line is marshalled
// first and written with one O_APPEND write so an interrupted writer can at
// worst leave a truncated tail line, which readers skip.
func (l *Log) Append(e Entry) error {
	if e.Date == "" {
		e.Date = l.now().Format(time.RFC3339)
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal memory entry: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create memory dir: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open memory log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append memory entry: %w", err)
	}
	return nil
}

// load reads every parseable entry in file order and reports how many lines
// were skipped as corrupt. A missing file is an empty log.
func (l *Log) load() ([]Entry, int, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open memory log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	skipped := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, skipped, fmt.Errorf("scan memory log: %w", err)
	}
	return entries, skipped, nil
}

// All returns every parseable entry in append order, plus the count of
// corrupt lines skipped.
func (l *Log) All() ([]Entry, int, error) {
	return l.load()
}

// ReadRecent returns a lazy, restartable sequence of the most recent
// parseable entries for a campaign, newest first, stopping at limit.
// Each range over the sequence re-reads the store.
func (l *Log) ReadRecent(campaign string, limit int) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		entries, skipped, err := l.load()
		if err != nil {
			logging.New("memory").Warn("read memory log", "error", err)
			return
		}
		if skipped > 0 {
			logging.New("memory").Warn("skipped corrupt memory lines", "count", skipped)
		}
		n := 0
		for i := len(entries) - 1; i >= 0 && n < limit; i-- {
			if entries[i].Campaign != campaign {
				continue
			}
			if !yield(entries[i]) {
				return
			}
			n++
		}
	}
}

// ContextExcerpt renders up to limit recent entries for a campaign as prompt
// context lines, newest first. Empty when the campaign has no history.
func (l *Log) ContextExcerpt(campaign string, limit int) string {
	out := ""
	for e := range l.ReadRecent(campaign, limit) {
		line := fmt.Sprintf("- [%s] hypothesis=%s angle=%s headlines=%d results=%v\n",
			e.Date, e.Hypothesis, e.Angle, len(e.Generated.Headlines), e.Results != nil)
		out += line
	}
	return out
}

// Ingest matches performance rows to existing entries by variant-set id and
// appends enrichment entries carrying the observed results. Rows with no
// matching id are appended as orphan entries with a warning; one bad row
// never fails the whole ingestion. Returns (matched, orphaned).
func (l *Log) Ingest(rows []PerformanceRow) (int, int, error) {
	entries, skipped, err := l.load()
	if err != nil {
		return 0, 0, err
	}
	log := logging.New("memory")
	if skipped > 0 {
		log.Warn("skipped corrupt memory lines", "count", skipped)
	}

	// Index the newest entry per variant-set id.
	byID := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if e.VariantSetID != "" {
			byID[e.VariantSetID] = e
		}
	}

	matched, orphaned := 0, 0
	for _, row := range rows {
		e := Entry{
			Hypothesis:   "performance_ingest",
			VariantSetID: row.VariantSetID,
			Campaign:     row.Campaign,
			AdGroup:      row.AdGroup,
			AdID:         row.AdID,
			Angle:        row.Angle,
			Notes:        row.Notes,
			Results:      row.Metrics,
		}
		if prior, ok := byID[row.VariantSetID]; ok {
			// Inherit metadata the row did not supply.
			if e.Campaign == "" {
				e.Campaign = prior.Campaign
			}
			if e.AdGroup == "" {
				e.AdGroup = prior.AdGroup
			}
			if e.AdID == "" {
				e.AdID = prior.AdID
			}
			if e.Angle == "" {
				e.Angle = prior.Angle
			}
			matched++
		} else {
			log.Warn("no memory entry for variant set", "variant_set_id", row.VariantSetID)
			orphaned++
		}
		if err := l.Append(e); err != nil {
			return matched, orphaned, err
		}
	}
	return matched, orphaned, nil
}

// ResultsFor resolves the newest observed results for a variant-set id,
// or nil when none have been ingested.
func (l *Log) ResultsFor(variantSetID string) (map[string]float64, error) {
	entries, _, err := l.load()
	if err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].VariantSetID == variantSetID && entries[i].Results != nil {
			return entries[i].Results, nil
		}
	}
	return nil, nil
}
