package generate

import "copyforge/internal/validate"

// CandidateSet accumulates the valid candidates for one field of one record
// across generation attempts. Valid candidates are grouped per attempt so the
// deduplicator can be told whether to collapse across attempt boundaries.
type CandidateSet struct {
	Field validate.Field

	// Batches holds the candidates that passed validation, one slice per
	// attempt that produced any. Earlier batches are never re-validated or
	// reset by later attempts.
	Batches [][]string

	Generated     int
	Rejected      int
	RejectReasons map[string]int
	Attempts      int

	// Exhausted is set when the attempt budget ran out before the valid
	// quota was reached. Not an error: downstream simply works with fewer
	// candidates.
	Exhausted bool
}

// Valid flattens the per-attempt batches in generation order.
func (cs CandidateSet) Valid() []string {
	var out []string
	for _, b := range cs.Batches {
		out = append(out, b...)
	}
	return out
}

// ValidCount is the running number of accepted candidates.
func (cs CandidateSet) ValidCount() int {
	n := 0
	for _, b := range cs.Batches {
		n += len(b)
	}
	return n
}
