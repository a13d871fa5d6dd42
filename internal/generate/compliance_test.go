package generate

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"copyforge/internal/validate"
)

func TestFilterRiskyClaims(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string // empty means the text passes
	}{
		{"clean", "Ships in two business days", ""},
		{"guarantee", "We guarantee your results", "absolute guarantee claim"},
		{"guaranteed", "Guaranteed delivery by Friday", "absolute guarantee claim"},
		{"superlative", "The best rates in town", "unsubstantiated superlative"},
		{"ranking hash", "#1 choice for small teams", "ranking claim"},
		{"ranking no dot", "The no.1 tool for billing", "ranking claim"},
		{"certainty", "100% satisfaction every time", "absolute certainty claim"},
		{"health cure", "Cure back pain fast", "health cure claim"},
		{"health heal", "Heals joints in weeks", "health treatment claim"},
		{"financial", "Double your investment return", "financial return claim"},
		{"substring is safe", "Bestseller lists updated daily", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keptH, keptD, failures := FilterRiskyClaims([]string{tt.text}, nil)
			if len(keptD) != 0 {
				t.Fatalf("descriptions appeared from nowhere: %v", keptD)
			}
			if tt.reason == "" {
				if len(failures) != 0 || len(keptH) != 1 {
					t.Fatalf("clean text flagged: kept=%v failures=%+v", keptH, failures)
				}
				return
			}
			if len(keptH) != 0 {
				t.Fatalf("risky text kept: %v", keptH)
			}
			if len(failures) != 1 {
				t.Fatalf("failures = %+v, want exactly one", failures)
			}
			f := failures[0]
			if f.Field != validate.FieldHeadline || f.Index != 0 || f.Text != tt.text {
				t.Errorf("failure identity wrong: %+v", f)
			}
			if !strings.Contains(f.Reason, tt.reason) {
				t.Errorf("reason = %q, want it to mention %q", f.Reason, tt.reason)
			}
		})
	}
}

func TestFilterRiskyClaimsJoinsAllReasons(t *testing.T) {
	_, _, failures := FilterRiskyClaims([]string{"Guaranteed best results"}, nil)
	if len(failures) != 1 {
		t.Fatalf("failures = %+v", failures)
	}
	want := "absolute guarantee claim; unsubstantiated superlative"
	if failures[0].Reason != want {
		t.Errorf("reason = %q, want %q", failures[0].Reason, want)
	}
}

func TestFilterRiskyClaimsSuggestsRevision(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Guaranteed best results", "help high-quality results"},
		{"Cure back pain fast", "support back pain fast"},
		{"100% satisfaction", "high satisfaction"},
	}
	for _, tt := range tests {
		_, _, failures := FilterRiskyClaims([]string{tt.text}, nil)
		if len(failures) != 1 {
			t.Fatalf("failures for %q = %+v", tt.text, failures)
		}
		if failures[0].Suggestion != tt.want {
			t.Errorf("suggestion for %q = %q, want %q", tt.text, failures[0].Suggestion, tt.want)
		}
	}
}

func TestFilterRiskyClaimsScansBothFields(t *testing.T) {
	keptH, keptD, failures := FilterRiskyClaims(
		[]string{"Plain headline", "Best deal ever"},
		[]string{"Heals everything overnight.", "A plain description."},
	)
	if diff := cmp.Diff([]string{"Plain headline"}, keptH); diff != "" {
		t.Errorf("headlines (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A plain description."}, keptD); diff != "" {
		t.Errorf("descriptions (-want +got):\n%s", diff)
	}
	if len(failures) != 2 {
		t.Fatalf("failures = %+v, want one per field", failures)
	}
	if failures[0].Field != validate.FieldHeadline || failures[0].Index != 1 {
		t.Errorf("headline failure misattributed: %+v", failures[0])
	}
	if failures[1].Field != validate.FieldDescription || failures[1].Index != 0 {
		t.Errorf("description failure misattributed: %+v", failures[1])
	}
}
