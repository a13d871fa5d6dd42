package generate

import (
	"regexp"
	"strings"

	"copyforge/internal/validate"
)

// riskRules pair a risky-claim pattern with its reason and the softened
// replacement used to build a revision suggestion. Order is significant:
// reasons join in rule order, and earlier replacements can defuse later
// patterns (a rewritten guarantee no longer matches "profit guarantee").
var riskRules = []struct {
	re      *regexp.Regexp
	reason  string
	replace string
}{
	{regexp.MustCompile(`(?i)\bguarantee(?:d)?\b`), "absolute guarantee claim", "help"},
	{regexp.MustCompile(`(?i)\bbest\b`), "unsubstantiated superlative", "high-quality"},
	{regexp.MustCompile(`(?i)\bno\.?\s*1\b`), "ranking claim", "top-rated"},
	{regexp.MustCompile(`(?i)\b#1\b`), "ranking claim", "top-rated"},
	{regexp.MustCompile(`(?i)100%`), "absolute certainty claim", "high"},
	{regexp.MustCompile(`(?i)\bcure\b`), "health cure claim", "support"},
	{regexp.MustCompile(`(?i)\bheal(?:s|ing)?\b`), "health treatment claim", "help improve"},
	{regexp.MustCompile(`(?i)\binvest(?:ment)?\s+return\b`), "financial return claim", "value"},
	{regexp.MustCompile(`(?i)\bprofit\s+guarantee\b`), "financial guarantee claim", "growth support"},
}

// ComplianceFailure records one piece of copy removed by the risky-claim
// filter, with every matched reason and a softened rewrite.
type ComplianceFailure struct {
	Field      validate.Field
	Index      int
	Text       string
	Reason     string
	Suggestion string
}

// FilterRiskyClaims drops copy containing risky claims the policy patterns
// let through (compound phrasing, claims outside the configured blocklist).
// It is rule-based and deterministic, so it runs in every mode and costs no
// backend call. Indices in the failures refer to the input slices.
func FilterRiskyClaims(headlines, descriptions []string) (keptH, keptD []string, failures []ComplianceFailure) {
	keptH, failures = scanRisky(headlines, validate.FieldHeadline, failures)
	keptD, failures = scanRisky(descriptions, validate.FieldDescription, failures)
	return keptH, keptD, failures
}

func scanRisky(items []string, field validate.Field, failures []ComplianceFailure) ([]string, []ComplianceFailure) {
	kept := make([]string, 0, len(items))
	for i, text := range items {
		var reasons []string
		for _, rule := range riskRules {
			if rule.re.MatchString(text) {
				reasons = append(reasons, rule.reason)
			}
		}
		if len(reasons) == 0 {
			kept = append(kept, text)
			continue
		}
		failures = append(failures, ComplianceFailure{
			Field:      field,
			Index:      i,
			Text:       text,
			Reason:     strings.Join(reasons, "; "),
			Suggestion: suggestRevision(text),
		})
	}
	return kept, failures
}

// suggestRevision softens every risky claim in text so the log carries a
// usable starting point, not just the rejection.
func suggestRevision(text string) string {
	for _, rule := range riskRules {
		text = rule.re.ReplaceAllString(text, rule.replace)
	}
	return text
}
