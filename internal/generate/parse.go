package generate

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fenceRe    = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	numberedRe = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*])\s*(.+?)\s*$`)
)

// stripFences unwraps a fenced code block if the whole response is one.
// Models ignore "JSON only" instructions often enough that this is routine.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return raw
}

// parseItems extracts a list of candidate strings from a model response.
// Preferred shape is {"items": [...]}; a bare JSON array is accepted; as a
// last resort, numbered or bulleted lines are taken one candidate per line.
func parseItems(raw string) []string {
	raw = stripFences(raw)

	var obj struct {
		Items []string `json:"items"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil && obj.Items != nil {
		return cleanItems(obj.Items)
	}

	var arr []string
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		return cleanItems(arr)
	}

	var items []string
	for _, line := range strings.Split(raw, "\n") {
		if m := numberedRe.FindStringSubmatch(line); m != nil {
			items = append(items, m[1])
		}
	}
	return cleanItems(items)
}

func cleanItems(items []string) []string {
	out := items[:0]
	for _, s := range items {
		s = strings.Trim(strings.TrimSpace(s), `"`)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseStrategy extracts the analysis and strategy fields from a strategy
// response. A response that is not the expected JSON shape is used verbatim
// as the strategy, with an empty analysis.
func parseStrategy(raw string) (analysis, strategy string) {
	raw = stripFences(raw)
	var obj struct {
		Analysis string `json:"analysis"`
		Strategy string `json:"strategy"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil && obj.Strategy != "" {
		return strings.TrimSpace(obj.Analysis), strings.TrimSpace(obj.Strategy)
	}
	return "", strings.TrimSpace(raw)
}

// parseBrandVoice renders a brand-voice response into the guideline block
// injected into generation prompts. Anything unparsable, or an empty
// guideline with no examples, yields the empty string and the prompts go out
// without a brand-voice section.
func parseBrandVoice(raw string) string {
	raw = stripFences(raw)
	var obj struct {
		Guideline string   `json:"guideline"`
		Examples  []string `json:"examples"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return ""
	}
	guideline := strings.TrimSpace(obj.Guideline)
	var examples []string
	for _, e := range obj.Examples {
		if e = strings.TrimSpace(e); e != "" {
			examples = append(examples, e)
		}
	}
	if guideline == "" && len(examples) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Guideline: " + guideline)
	if len(examples) > 3 {
		examples = examples[:3]
	}
	if len(examples) > 0 {
		b.WriteString("\nExamples:")
		for _, e := range examples {
			b.WriteString("\n- " + e)
		}
	}
	return b.String()
}

// reviewViolation is one flagged item from the review pass.
type reviewViolation struct {
	Type  string `json:"type"` // "headline" or "description"
	Index int    `json:"index"`
	Issue string `json:"issue"`
}

// parseReview extracts flagged items from a review response. ok is false
// when the response cannot be parsed, in which case the caller keeps all
// copy rather than guessing.
func parseReview(raw string) (violations []reviewViolation, ok bool) {
	raw = stripFences(raw)
	var obj struct {
		Violations []reviewViolation `json:"violations"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, false
	}
	return obj.Violations, true
}
