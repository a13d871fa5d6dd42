package selector

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"copyforge/internal/ads"
	"copyforge/internal/config"
)

// healthy returns a record passing every default threshold.
func healthy(id string) ads.Record {
	return ads.Record{
		Campaign: "summer", AdGroup: "shoes", AdID: id,
		Impressions: 10000, Clicks: 300, Conversions: 20, Spend: 400, Revenue: 1600,
	}
}

func TestLowImpressionsExcludedEntirely(t *testing.T) {
	r := ads.Record{AdID: "AD001", Impressions: 999} // would fail every threshold
	sel := Select([]ads.Record{r}, config.Default().Selector)
	if len(sel.Records) != 0 || len(sel.Reasons) != 0 {
		t.Errorf("thin record selected: %+v", sel)
	}
}

func TestHealthyRecordNotSelected(t *testing.T) {
	sel := Select([]ads.Record{healthy("AD001")}, config.Default().Selector)
	if len(sel.Records) != 0 {
		t.Errorf("healthy record selected: %+v", sel.Reasons)
	}
}

func TestAllFailingThresholdsEnumerated(t *testing.T) {
	// Fails CTR, CPA and ROAS at once.
	r := ads.Record{
		AdID: "AD001", Impressions: 10000, Clicks: 50,
		Conversions: 2, Spend: 500, Revenue: 200,
	}
	sel := Select([]ads.Record{r}, config.Default().Selector)
	if len(sel.Reasons) != 1 {
		t.Fatalf("selected %d, want 1", len(sel.Reasons))
	}
	got := sel.Reasons[0].Reasons
	for _, want := range []string{"CTR 0.0050 < 0.0200", "CPA 250.00 > 50.00", "ROAS 0.40 < 2.00"} {
		if !strings.Contains(got, want) {
			t.Errorf("reasons %q missing %q", got, want)
		}
	}
	if strings.Count(got, ";") != 2 {
		t.Errorf("want three reasons joined by two separators, got %q", got)
	}
}

func TestUndefinedMetricsFailTheirThresholds(t *testing.T) {
	// Zero conversions and zero spend: CPA and ROAS are undefined.
	r := ads.Record{
		AdID: "AD001", Impressions: 10000, Clicks: 300,
		Conversions: 0, Spend: 0, Revenue: 0,
	}
	sel := Select([]ads.Record{r}, config.Default().Selector)
	if len(sel.Reasons) != 1 {
		t.Fatalf("record with undefined metrics not selected")
	}
	got := sel.Reasons[0].Reasons
	if !strings.Contains(got, "CPA n/a") || !strings.Contains(got, "ROAS n/a") {
		t.Errorf("undefined metrics not reported: %q", got)
	}
	if strings.Contains(got, "CTR") {
		t.Errorf("passing CTR reported as failing: %q", got)
	}
}

func TestScenarioEightRecordsFourSelected(t *testing.T) {
	cfg := config.SelectorConfig{
		MinImpressions: 1000,
		MinCTR:         0.01,
		MaxCPA:         1e9, // effectively disabled
		MinROAS:        1.0,
	}
	mk := func(id string, clicks int, revenue float64) ads.Record {
		return ads.Record{
			AdID: id, Campaign: "c", AdGroup: "g",
			Impressions: 10000, Clicks: clicks,
			Conversions: 10, Spend: 100, Revenue: revenue,
		}
	}
	records := []ads.Record{
		mk("AD001", 300, 300), // fine
		mk("AD002", 50, 300),  // low CTR
		mk("AD003", 300, 50),  // low ROAS
		mk("AD004", 50, 50),   // both
		mk("AD005", 300, 300), // fine
		mk("AD006", 80, 400),  // low CTR
		mk("AD007", 300, 120), // fine
		mk("AD008", 200, 500), // fine
	}

	sel := Select(records, cfg)
	var ids []string
	for _, r := range sel.Records {
		ids = append(ids, r.AdID)
	}
	want := []string{"AD002", "AD003", "AD004", "AD006"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("selected ids (-want +got):\n%s", diff)
	}

	byID := map[string]string{}
	for _, r := range sel.Reasons {
		byID[r.AdID] = r.Reasons
	}
	if got := byID["AD002"]; got != "CTR 0.0050 < 0.0100" {
		t.Errorf("AD002 reason = %q", got)
	}
	if got := byID["AD003"]; got != "ROAS 0.50 < 1.00" {
		t.Errorf("AD003 reason = %q", got)
	}
	if got := byID["AD004"]; got != "CTR 0.0050 < 0.0100; ROAS 0.50 < 1.00" {
		t.Errorf("AD004 reason = %q", got)
	}
}

func TestSelectionPreservesInputOrder(t *testing.T) {
	bad := func(id string) ads.Record {
		r := healthy(id)
		r.Clicks = 10
		return r
	}
	sel := Select([]ads.Record{bad("Z"), bad("A"), bad("M")}, config.Default().Selector)
	var ids []string
	for _, r := range sel.Records {
		ids = append(ids, r.AdID)
	}
	if diff := cmp.Diff([]string{"Z", "A", "M"}, ids); diff != "" {
		t.Errorf("order changed (-want +got):\n%s", diff)
	}
}
