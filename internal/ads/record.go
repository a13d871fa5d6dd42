// Package ads holds the row model shared by the whole pipeline: raw
// performance records as ingested, plus the selection and variant types that
// flow out of the orchestrator.
package ads

import "math"

// Record is one row of raw performance input. Counters are immutable once
// ingested; derived metrics are computed on read and never stored back.
type Record struct {
	Campaign    string
	AdGroup     string
	AdID        string
	Headline    string
	Description string

	Impressions int
	Clicks      int
	Spend       float64
	Conversions float64
	Revenue     float64
}

// CTR is clicks / impressions. NaN when there are no impressions: downstream
// threshold comparisons treat NaN as worse than any configured value.
func (r Record) CTR() float64 {
	if r.Impressions <= 0 {
		return math.NaN()
	}
	return float64(r.Clicks) / float64(r.Impressions)
}

// CPA is spend / conversions, NaN when there are no conversions.
func (r Record) CPA() float64 {
	if r.Conversions <= 0 {
		return math.NaN()
	}
	return r.Spend / r.Conversions
}

// ROAS is revenue / spend, NaN when there is no spend.
func (r Record) ROAS() float64 {
	if r.Spend <= 0 {
		return math.NaN()
	}
	return r.Revenue / r.Spend
}

// Reason pairs a selected record with the human-readable explanation of which
// thresholds it failed (observed vs. configured, every failure enumerated).
type Reason struct {
	AdID     string
	Campaign string
	AdGroup  string
	Reasons  string
}

// Selection is the output of the selector: the underperforming subset in
// input order, with a parallel reason per record. Never mutated after
// creation.
type Selection struct {
	Records []Record
	Reasons []Reason
}

// Variant is one headline x description pair in a variant set.
type Variant struct {
	Headline    string
	Description string
	Tag         string
}

// VariantSet is the final validated, deduplicated cross-product for one
// record. Rows are filtered before creation, never removed after.
type VariantSet struct {
	ID       string
	AdID     string
	Campaign string
	AdGroup  string
	Strategy string
	Angle    string
	Variants []Variant
}
