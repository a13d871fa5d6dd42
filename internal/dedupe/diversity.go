package dedupe

import "strings"

// EnforceDiversity selects up to targetCount texts while maximizing creative
// angle coverage. The input is collapsed first; a first pass then picks the
// earliest representative of each not-yet-seen angle bucket until
// minDistinctAngles buckets are covered, and a second pass fills the
// remaining slots in original order, still rejecting near-duplicates of
// anything already selected. missing lists the uncovered buckets, capped at
// the shortfall against minDistinctAngles; dist counts every bucket over the
// selection.
func EnforceDiversity(texts []string, threshold, minDistinctAngles, targetCount int, ratio RatioFunc) (selected, missing []string, dist map[string]int) {
	if minDistinctAngles < 1 {
		minDistinctAngles = 1
	}
	if minDistinctAngles > len(AngleBuckets) {
		minDistinctAngles = len(AngleBuckets)
	}

	deduped := Collapse(texts, threshold, ratio)
	if len(deduped) == 0 {
		return nil, AngleBuckets[:minDistinctAngles], Distribution(nil)
	}

	used := make(map[string]bool)
	taken := make(map[string]bool)
	for _, t := range deduped {
		bucket := DetectAngle(t)
		if used[bucket] {
			continue
		}
		selected = append(selected, t)
		taken[t] = true
		used[bucket] = true
		if len(used) >= minDistinctAngles {
			break
		}
	}

	for _, t := range deduped {
		if len(selected) >= targetCount {
			break
		}
		if taken[t] {
			continue
		}
		dup := false
		for _, s := range selected {
			if ratio(strings.ToLower(t), strings.ToLower(s)) >= threshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		selected = append(selected, t)
		taken[t] = true
	}

	dist = Distribution(selected)
	present := 0
	for _, n := range dist {
		if n > 0 {
			present++
		}
	}
	if present < minDistinctAngles {
		for _, b := range AngleBuckets {
			if dist[b] == 0 {
				missing = append(missing, b)
				if len(missing) >= minDistinctAngles-present {
					break
				}
			}
		}
	}
	return selected, missing, dist
}
