package dedupe

import "strings"

// Collapse removes near-duplicates from texts with a greedy single pass:
// each candidate is scored against every already-kept representative, and
// discarded when its best score meets or exceeds threshold. The first-seen
// representative of each cluster survives in its original relative order.
// Blank candidates are dropped; comparison is case-insensitive on trimmed
// text, but kept strings preserve their original (trimmed) form.
func Collapse(texts []string, threshold int, ratio RatioFunc) []string {
	kept := make([]string, 0, len(texts))
	keys := make([]string, 0, len(texts))
	for _, t := range texts {
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		dup := false
		for _, k := range keys {
			if ratio(key, k) >= threshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, trimmed)
			keys = append(keys, key)
		}
	}
	return kept
}
