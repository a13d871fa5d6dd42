// Package validate checks candidate copy against character limits and policy
// rules. The checks are pure: identical (text, field, rules) inputs always
// produce identical violation lists, in a fixed order, so callers can count
// and report rejections deterministically.
package validate

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"

	"copyforge/internal/config"
)

// Field identifies which copy field a candidate targets.
type Field int

const (
	FieldHeadline Field = iota
	FieldDescription
)

// String returns the lower-case field name used in logs and reject-reason keys.
func (f Field) String() string {
	if f == FieldHeadline {
		return "headline"
	}
	return "description"
}

// Result is the verdict for one candidate. A candidate with zero violations
// is valid; any violation rejects it.
type Result struct {
	Valid      bool
	Violations []string
}

// Rules is a compiled, reusable rule set. Compile once per run.
type Rules struct {
	maxHeadlineChars    int
	maxDescriptionChars int
	maxUppercaseRatio   float64
	blocked             []*regexp.Regexp
	blockedSrc          []string
}

// Compile builds a rule set from configuration. Invalid blocked-pattern
// regexps are a configuration defect and fail compilation outright.
func Compile(gen config.GenerationConfig, pol config.PolicyConfig) (*Rules, error) {
	r := &Rules{
		maxHeadlineChars:    gen.MaxHeadlineChars,
		maxDescriptionChars: gen.MaxDescriptionChars,
		maxUppercaseRatio:   pol.MaxUppercaseRatio,
		blockedSrc:          pol.BlockedPatterns,
	}
	for _, pat := range pol.BlockedPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("blocked pattern %q: %w", pat, err)
		}
		r.blocked = append(r.blocked, re)
	}
	return r, nil
}

// MaxChars returns the configured character limit for a field.
func (r *Rules) MaxChars(f Field) int {
	if f == FieldHeadline {
		return r.maxHeadlineChars
	}
	return r.maxDescriptionChars
}

// Check validates one candidate string for a field. Rules run in a fixed
// order: character length, uppercase ratio, blocked patterns. Every violated
// rule is reported, not just the first.
func (r *Rules) Check(text string, f Field) Result {
	var violations []string

	max := r.MaxChars(f)
	// Unicode-safe count: every code point is one character, matching ad
	// platform counting behaviour.
	if n := utf8.RuneCountInString(text); n > max {
		violations = append(violations, fmt.Sprintf("exceeds %d chars (has %d)", max, n))
	}

	if ratio, ok := uppercaseRatio(text); ok && ratio > r.maxUppercaseRatio {
		violations = append(violations, fmt.Sprintf("uppercase ratio %.2f exceeds %.2f", ratio, r.maxUppercaseRatio))
	}

	for i, re := range r.blocked {
		if re.MatchString(text) {
			violations = append(violations, fmt.Sprintf("blocked pattern %s", r.blockedSrc[i]))
		}
	}

	return Result{Valid: len(violations) == 0, Violations: violations}
}

// uppercaseRatio returns the proportion of letters that are upper case.
// ok is false when the text contains no letters, in which case the rule
// does not apply.
func uppercaseRatio(text string) (float64, bool) {
	letters, upper := 0, 0
	for _, c := range text {
		if unicode.IsLetter(c) {
			letters++
			if unicode.IsUpper(c) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0, false
	}
	return float64(upper) / float64(letters), true
}
