package dedupe

import "regexp"

// AngleBuckets are the creative-angle labels recorded on memory entries and
// in the run report distribution.
var AngleBuckets = []string{
	"benefit",
	"urgency",
	"social_proof",
	"problem_solution",
	"curiosity",
}

// anglePatterns classify copy by keyword. Checked in priority order; the
// first bucket with a match wins, benefit is the default.
var anglePatterns = map[string][]*regexp.Regexp{
	"urgency": {
		regexp.MustCompile(`(?i)\b(now|today|limited|ending|deadline|hurry|last chance)\b`),
	},
	"social_proof": {
		regexp.MustCompile(`(?i)\b(\d+k|\d+\+|customers|users|trusted|review|rated)\b`),
	},
	"problem_solution": {
		regexp.MustCompile(`(?i)\b(problem|pain|issue|fix|solve|solution)\b`),
	},
	"curiosity": {
		regexp.MustCompile(`(?i)\b(discover|secret|why|what if|revealed)\b`),
	},
	"benefit": {
		regexp.MustCompile(`(?i)\b(save|better|easy|faster|value|benefit)\b`),
	},
}

var angleOrder = []string{"urgency", "social_proof", "problem_solution", "curiosity", "benefit"}

// DetectAngle classifies one piece of copy into a creative-angle bucket.
func DetectAngle(text string) string {
	for _, bucket := range angleOrder {
		for _, re := range anglePatterns[bucket] {
			if re.MatchString(text) {
				return bucket
			}
		}
	}
	return "benefit"
}

// Distribution counts angle buckets across the given texts. Every bucket is
// present in the result, zero or not.
func Distribution(texts []string) map[string]int {
	dist := make(map[string]int, len(AngleBuckets))
	for _, b := range AngleBuckets {
		dist[b] = 0
	}
	for _, t := range texts {
		dist[DetectAngle(t)]++
	}
	return dist
}
