package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"copyforge/internal/ads"
	"copyforge/internal/config"
	"copyforge/internal/provider"
	"copyforge/internal/validate"
)

// scripted replays a fixed sequence of responses or errors, one per call.
type scripted struct {
	responses []any // string or error
	calls     int
}

func (s *scripted) Generate(ctx context.Context, req provider.Request) (string, error) {
	if s.calls >= len(s.responses) {
		return "", errors.New("script exhausted")
	}
	r := s.responses[s.calls]
	s.calls++
	if err, ok := r.(error); ok {
		return "", err
	}
	return r.(string), nil
}

func batch(items ...string) string {
	out, _ := json.Marshal(map[string][]string{"items": items})
	return string(out)
}

func testGen(t *testing.T, backend provider.Provider, genCfg config.GenerationConfig) *Generator {
	t.Helper()
	rules, err := validate.Compile(genCfg, config.Default().Policy)
	if err != nil {
		t.Fatal(err)
	}
	return New(backend, rules, genCfg)
}

func TestFieldAccumulatesAcrossAttempts(t *testing.T) {
	// Quota 10, budget 3, each attempt yields 4 valid and 2 invalid.
	mkAttempt := func(n int) string {
		return batch(
			fmt.Sprintf("Fresh Angle Number %d A", n),
			fmt.Sprintf("Fresh Angle Number %d B", n),
			fmt.Sprintf("Fresh Angle Number %d C", n),
			fmt.Sprintf("Fresh Angle Number %d D", n),
			"THIS HEADLINE IS FAR TOO LONG TO EVER PASS VALIDATION",
			"Guaranteed results",
		)
	}
	backend := &scripted{responses: []any{mkAttempt(1), mkAttempt(2), mkAttempt(3)}}
	cfg := config.Default().Generation
	cfg.MaxAttempts = 3
	g := testGen(t, backend, cfg)

	cs, err := g.Field(context.Background(), ads.Record{AdID: "AD001"}, "strategy", "", "", validate.FieldHeadline, 10)
	if err != nil {
		t.Fatalf("Field: %v", err)
	}
	if cs.Attempts != 3 {
		t.Errorf("attempts = %d, want 3 (quota reached on the third)", cs.Attempts)
	}
	if cs.ValidCount() != 12 {
		t.Errorf("valid = %d, want 12 (whole third batch validated before stopping)", cs.ValidCount())
	}
	if cs.Generated != 18 || cs.Rejected != 6 {
		t.Errorf("generated=%d rejected=%d, want 18 and 6", cs.Generated, cs.Rejected)
	}
	if cs.Generated-cs.Rejected != cs.ValidCount() {
		t.Error("counters do not reconcile")
	}
	if cs.Exhausted {
		t.Error("quota was reached, set must not be exhausted")
	}
	if len(cs.Batches) != 3 {
		t.Errorf("batches = %d, want one per attempt", len(cs.Batches))
	}
}

func TestFieldStopsEarlyWhenQuotaMet(t *testing.T) {
	backend := &scripted{responses: []any{
		batch("One Good Headline", "Two Good Headline"),
		batch("Should Never Be Requested"),
	}}
	cfg := config.Default().Generation
	cfg.MaxAttempts = 3
	g := testGen(t, backend, cfg)

	cs, err := g.Field(context.Background(), ads.Record{AdID: "AD001"}, "s", "", "", validate.FieldHeadline, 2)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Attempts != 1 || backend.calls != 1 {
		t.Errorf("attempts=%d calls=%d, want 1 and 1", cs.Attempts, backend.calls)
	}
}

func TestFieldExhaustionIsNotAnError(t *testing.T) {
	backend := &scripted{responses: []any{
		batch("Only Valid One"),
		batch(), // empty attempt
		batch("Second Valid One"),
	}}
	cfg := config.Default().Generation
	cfg.MaxAttempts = 3
	g := testGen(t, backend, cfg)

	cs, err := g.Field(context.Background(), ads.Record{AdID: "AD001"}, "s", "", "", validate.FieldHeadline, 10)
	if err != nil {
		t.Fatalf("exhaustion must not be an error: %v", err)
	}
	if !cs.Exhausted {
		t.Error("quota missed, set must be marked exhausted")
	}
	want := []string{"Only Valid One", "Second Valid One"}
	if diff := cmp.Diff(want, cs.Valid()); diff != "" {
		t.Errorf("valid candidates (-want +got):\n%s", diff)
	}
}

func TestFieldTransientFailureCostsTheAttempt(t *testing.T) {
	backend := &scripted{responses: []any{
		fmt.Errorf("retries exhausted: %w", provider.ErrTransient),
		batch("Recovered Headline", "Another Recovered One"),
	}}
	cfg := config.Default().Generation
	cfg.MaxAttempts = 3
	g := testGen(t, backend, cfg)

	cs, err := g.Field(context.Background(), ads.Record{AdID: "AD001"}, "s", "", "", validate.FieldHeadline, 2)
	if err != nil {
		t.Fatalf("transient failure aborted the loop: %v", err)
	}
	if cs.Attempts != 2 {
		t.Errorf("attempts = %d, want 2 (failure consumed a slot)", cs.Attempts)
	}
	if cs.ValidCount() != 2 {
		t.Errorf("valid = %d, want 2", cs.ValidCount())
	}
}

func TestFieldFatalFailureReturnsPartialSet(t *testing.T) {
	backend := &scripted{responses: []any{
		batch("First Valid Headline"),
		errors.New("invalid api key"),
	}}
	cfg := config.Default().Generation
	cfg.MaxAttempts = 3
	g := testGen(t, backend, cfg)

	cs, err := g.Field(context.Background(), ads.Record{AdID: "AD001"}, "s", "", "", validate.FieldHeadline, 5)
	if err == nil {
		t.Fatal("fatal backend failure must surface")
	}
	if cs.ValidCount() != 1 {
		t.Errorf("partial set lost: valid = %d, want 1", cs.ValidCount())
	}
}

func TestFieldOnlyValidatesNewBatches(t *testing.T) {
	// The same text in attempt two must not be re-counted from attempt one's
	// accepted pool; each generated string is validated exactly once.
	backend := &scripted{responses: []any{
		batch("Stable Headline"),
		batch("Stable Headline"),
	}}
	cfg := config.Default().Generation
	cfg.MaxAttempts = 2
	g := testGen(t, backend, cfg)

	cs, _ := g.Field(context.Background(), ads.Record{AdID: "AD001"}, "s", "", "", validate.FieldHeadline, 5)
	if cs.Generated != 2 {
		t.Errorf("generated = %d, want 2 (one per produced candidate)", cs.Generated)
	}
}

func TestFieldRejectReasonBreakdown(t *testing.T) {
	backend := &scripted{responses: []any{
		batch("Fine Headline", "Guaranteed to work", "100% RESULTS TODAY NOW"),
	}}
	cfg := config.Default().Generation
	cfg.MaxAttempts = 1
	g := testGen(t, backend, cfg)

	cs, _ := g.Field(context.Background(), ads.Record{AdID: "AD001"}, "s", "", "", validate.FieldHeadline, 5)
	if cs.Rejected != 2 {
		t.Fatalf("rejected = %d, want 2", cs.Rejected)
	}
	total := 0
	for _, n := range cs.RejectReasons {
		total += n
	}
	if total < 2 {
		t.Errorf("reason breakdown %v does not cover the rejections", cs.RejectReasons)
	}
}

func TestStrategyParsesJSON(t *testing.T) {
	backend := &scripted{responses: []any{
		"```json\n{\"analysis\": \"weak offer\", \"strategy\": \"lead with urgency\"}\n```",
	}}
	g := testGen(t, backend, config.Default().Generation)

	analysis, strategy, err := g.Strategy(context.Background(), ads.Record{AdID: "AD001"}, "CTR low", "")
	if err != nil {
		t.Fatal(err)
	}
	if analysis != "weak offer" || strategy != "lead with urgency" {
		t.Errorf("analysis=%q strategy=%q", analysis, strategy)
	}
}

func TestStrategyFallsBackToRawText(t *testing.T) {
	backend := &scripted{responses: []any{"Just lead with the discount."}}
	g := testGen(t, backend, config.Default().Generation)

	_, strategy, err := g.Strategy(context.Background(), ads.Record{AdID: "AD001"}, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if strategy != "Just lead with the discount." {
		t.Errorf("strategy = %q", strategy)
	}
}

func TestReviewDropsFlaggedItems(t *testing.T) {
	backend := &scripted{responses: []any{
		`{"violations": [{"type": "headline", "index": 1, "issue": "implied guarantee"}]}`,
	}}
	g := testGen(t, backend, config.Default().Generation)

	h, d, flagged := g.Review(context.Background(), ads.Record{AdID: "AD001"},
		[]string{"Keep Me", "Drop Me"}, []string{"Keep this description."})
	if flagged != 1 {
		t.Errorf("flagged = %d, want 1", flagged)
	}
	if diff := cmp.Diff([]string{"Keep Me"}, h); diff != "" {
		t.Errorf("headlines (-want +got):\n%s", diff)
	}
	if len(d) != 1 {
		t.Errorf("descriptions shrank: %v", d)
	}
}

func TestReviewKeepsEverythingOnFailure(t *testing.T) {
	for name, backend := range map[string]provider.Provider{
		"backend error": &scripted{responses: []any{errors.New("overloaded")}},
		"garbage":       &scripted{responses: []any{"I think it all looks great!"}},
	} {
		t.Run(name, func(t *testing.T) {
			g := testGen(t, backend, config.Default().Generation)
			h, d, flagged := g.Review(context.Background(), ads.Record{},
				[]string{"A", "B"}, []string{"C"})
			if flagged != 0 || len(h) != 2 || len(d) != 1 {
				t.Errorf("advisory pass dropped copy: h=%v d=%v flagged=%d", h, d, flagged)
			}
		})
	}
}

func TestBrandVoiceRendersGuideline(t *testing.T) {
	backend := &scripted{responses: []any{
		"```json\n{\"guideline\": \"Plain and concrete.\", \"examples\": [\"Ships in two days\", \"Priced per seat\"]}\n```",
	}}
	g := testGen(t, backend, config.Default().Generation)

	got := g.BrandVoice(context.Background(), ads.Record{AdID: "AD001"}, config.Default().BrandVoice)
	want := "Guideline: Plain and concrete.\nExamples:\n- Ships in two days\n- Priced per seat"
	if got != want {
		t.Errorf("guideline = %q, want %q", got, want)
	}
}

func TestBrandVoiceCapsExamples(t *testing.T) {
	backend := &scripted{responses: []any{
		`{"guideline": "Short.", "examples": ["a", "b", "c", "d", "e"]}`,
	}}
	g := testGen(t, backend, config.Default().Generation)

	got := g.BrandVoice(context.Background(), ads.Record{}, config.Default().BrandVoice)
	want := "Guideline: Short.\nExamples:\n- a\n- b\n- c"
	if got != want {
		t.Errorf("guideline = %q, want %q", got, want)
	}
}

func TestBrandVoiceFailureYieldsEmptyGuideline(t *testing.T) {
	for name, backend := range map[string]provider.Provider{
		"backend error": &scripted{responses: []any{errors.New("overloaded")}},
		"garbage":       &scripted{responses: []any{"Sounds good, just write nice ads."}},
		"empty object":  &scripted{responses: []any{`{"guideline": "", "examples": []}`}},
	} {
		t.Run(name, func(t *testing.T) {
			g := testGen(t, backend, config.Default().Generation)
			if got := g.BrandVoice(context.Background(), ads.Record{}, config.Default().BrandVoice); got != "" {
				t.Errorf("advisory pass produced %q, want empty", got)
			}
		})
	}
}

func TestParseItemsShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"object", `{"items": ["a", "b"]}`, []string{"a", "b"}},
		{"array", `["a", "b"]`, []string{"a", "b"}},
		{"fenced", "```json\n{\"items\": [\"a\"]}\n```", []string{"a"}},
		{"numbered", "1. First one\n2) Second one\n- Third one", []string{"First one", "Second one", "Third one"}},
		{"blank items dropped", `{"items": ["a", "", "  "]}`, []string{"a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, parseItems(tc.raw)); diff != "" {
				t.Errorf("parseItems (-want +got):\n%s", diff)
			}
		})
	}
}
