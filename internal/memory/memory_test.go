package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testLog(t *testing.T) *Log {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "memory.jsonl"))
}

func TestAppendAndReadRecent(t *testing.T) {
	l := testLog(t)
	for _, e := range []Entry{
		{Campaign: "summer", VariantSetID: "vs_a", Hypothesis: "h1"},
		{Campaign: "winter", VariantSetID: "vs_b", Hypothesis: "h2"},
		{Campaign: "summer", VariantSetID: "vs_c", Hypothesis: "h3"},
		{Campaign: "summer", VariantSetID: "vs_d", Hypothesis: "h4"},
	} {
		if err := l.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	var got []string
	for e := range l.ReadRecent("summer", 2) {
		got = append(got, e.VariantSetID)
	}
	// Newest first, limited, campaign-filtered.
	want := []string{"vs_d", "vs_c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadRecent mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRecentIsRestartable(t *testing.T) {
	l := testLog(t)
	if err := l.Append(Entry{Campaign: "c", VariantSetID: "vs_1"}); err != nil {
		t.Fatal(err)
	}

	seq := l.ReadRecent("c", 10)
	first, second := 0, 0
	for range seq {
		first++
	}
	for range seq {
		second++
	}
	if first != 1 || second != 1 {
		t.Errorf("restarted sequence yielded %d then %d entries, want 1 and 1", first, second)
	}
}

func TestCorruptLinesAreSkipped(t *testing.T) {
	l := testLog(t)
	if err := l.Append(Entry{Campaign: "c", VariantSetID: "vs_ok"}); err != nil {
		t.Fatal(err)
	}
	// Simulate an interrupted writer: a truncated trailing line.
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"campaign":"c","variant_set`); err != nil {
		t.Fatal(err)
	}
	f.Close()

	entries, skipped, err := l.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(entries) != 1 || entries[0].VariantSetID != "vs_ok" {
		t.Errorf("entries = %+v, want the one good entry", entries)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
}

func TestAppendSetsDate(t *testing.T) {
	l := testLog(t)
	if err := l.Append(Entry{Campaign: "c", VariantSetID: "vs_1"}); err != nil {
		t.Fatal(err)
	}
	entries, _, err := l.All()
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Date == "" {
		t.Error("date not stamped on append")
	}
}

func TestIngestMatchesAndOrphans(t *testing.T) {
	l := testLog(t)
	if err := l.Append(Entry{
		Campaign: "summer", AdGroup: "g1", AdID: "AD001",
		VariantSetID: "vs_known", Angle: "urgency",
	}); err != nil {
		t.Fatal(err)
	}

	matched, orphaned, err := l.Ingest([]PerformanceRow{
		{VariantSetID: "vs_known", Metrics: map[string]float64{"ctr": 0.025, "roas": 3.8}},
		{VariantSetID: "vs_missing", Metrics: map[string]float64{"ctr": 0.01}},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if matched != 1 || orphaned != 1 {
		t.Errorf("matched=%d orphaned=%d, want 1 and 1", matched, orphaned)
	}

	// The enrichment entry inherits metadata from the matched entry.
	results, err := l.ResultsFor("vs_known")
	if err != nil {
		t.Fatal(err)
	}
	if results["ctr"] != 0.025 {
		t.Errorf("results = %v, want ctr 0.025", results)
	}
	entries, _, _ := l.All()
	last := entries[len(entries)-1]
	if last.VariantSetID != "vs_missing" {
		t.Fatalf("last entry = %+v", last)
	}
	enriched := entries[1]
	if enriched.Campaign != "summer" || enriched.Angle != "urgency" {
		t.Errorf("enrichment entry did not inherit metadata: %+v", enriched)
	}
}

func TestIngestNeverRewritesHistory(t *testing.T) {
	l := testLog(t)
	if err := l.Append(Entry{Campaign: "c", VariantSetID: "vs_1"}); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(l.path)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := l.Ingest([]PerformanceRow{
		{VariantSetID: "vs_1", Metrics: map[string]float64{"roas": 2.0}},
	}); err != nil {
		t.Fatal(err)
	}

	after, err := os.ReadFile(l.path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(after), string(before)) {
		t.Error("ingest rewrote existing lines; store must be append-only")
	}
}

func TestContextExcerpt(t *testing.T) {
	l := testLog(t)
	if got := l.ContextExcerpt("c", 5); got != "" {
		t.Errorf("empty log excerpt = %q, want empty", got)
	}
	if err := l.Append(Entry{Campaign: "c", Hypothesis: "urgency angle", Angle: "urgency"}); err != nil {
		t.Fatal(err)
	}
	got := l.ContextExcerpt("c", 5)
	if !strings.Contains(got, "urgency angle") {
		t.Errorf("excerpt missing hypothesis: %q", got)
	}
}
