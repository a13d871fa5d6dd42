// Package dedupe collapses near-duplicate ad copy. Similarity is computed on
// a 0-100 scale by one of two interchangeable algorithms: the primary
// edit-distance ratio (levenshtein) and a longest-common-subsequence fallback
// rescaled to the same range, so a configured threshold keeps its meaning
// whichever implementation is active.
package dedupe

import (
	"github.com/agnivade/levenshtein"
)

// RatioFunc scores the similarity of two strings on a 0-100 scale.
// 100 means identical, 0 means nothing in common.
type RatioFunc func(a, b string) int

// LevenshteinRatio is the primary similarity: 100 * (1 - distance/maxLen),
// computed over runes.
func LevenshteinRatio(a, b string) int {
	la, lb := runeLen(a), runeLen(b)
	if la == 0 && lb == 0 {
		return 100
	}
	max := la
	if lb > max {
		max = lb
	}
	d := levenshtein.ComputeDistance(a, b)
	return roundRatio(float64(max-d), float64(max))
}

// LCSRatio is the fallback similarity: 2*LCS / (len(a)+len(b)), linearly
// rescaled to 0-100. It matches the primary at the extremes (identical = 100,
// disjoint = 0) so thresholds transfer between the two.
func LCSRatio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 100
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return roundRatio(float64(2*lcsLength(ra, rb)), float64(len(ra)+len(rb)))
}

// ForAlgorithm maps a config algorithm name to its ratio implementation.
// Unknown names fall back to the primary.
func ForAlgorithm(name string) RatioFunc {
	if name == "lcs" {
		return LCSRatio
	}
	return LevenshteinRatio
}

// lcsLength computes the longest-common-subsequence length with a
// two-row DP table.
func lcsLength(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func runeLen(s string) int { return len([]rune(s)) }

func roundRatio(num, den float64) int {
	return int(100*num/den + 0.5)
}
