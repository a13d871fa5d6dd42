package pipeline

import "fmt"

// Stage names the orchestrator's state machine states, logged at each
// transition.
type Stage string

const (
	StageIngested     Stage = "ingested"
	StageSelected     Stage = "selected"
	StageGenerated    Stage = "generated"
	StageValidated    Stage = "validated"
	StageDeduplicated Stage = "deduplicated"
	StageExported     Stage = "exported"
	StageLogged       Stage = "logged"
)

// Counters aggregates the run-wide numbers. They must reconcile exactly;
// a counter that cannot be derived from the stage outputs is a defect.
type Counters struct {
	Ingested int
	Selected int

	Generated int
	Valid     int
	Rejected  int
	// RejectReasons breaks Rejected down by violation text.
	RejectReasons map[string]int

	DuplicatesRemoved int
	KeptAfterDedup    int
	ReviewFlagged     int
	// ComplianceFlagged counts copy the rule-based risky-claim filter removed
	// after the review pass.
	ComplianceFlagged int

	VariantSets int
	Variants    int

	// ExhaustedSets counts candidate pools that ran out of attempts before
	// reaching quota. Visible so a shrunken export is explainable.
	ExhaustedSets int
	// FailedRecords counts selected records whose generation hit a fatal
	// backend error and produced no variant set.
	FailedRecords int

	BackendCalls   int64
	BackendRetries int64
	CacheHits      int64
	CacheMisses    int64
}

// Reconcile verifies the cross-stage accounting identities. An error here
// means a stage lost or double-counted candidates.
func (c Counters) Reconcile() error {
	if c.Generated-c.Rejected != c.Valid {
		return fmt.Errorf("counters do not reconcile: generated %d - rejected %d != valid %d",
			c.Generated, c.Rejected, c.Valid)
	}
	if c.KeptAfterDedup > c.Valid {
		return fmt.Errorf("counters do not reconcile: kept after dedup %d > valid %d",
			c.KeptAfterDedup, c.Valid)
	}
	if c.KeptAfterDedup+c.DuplicatesRemoved != c.Valid {
		return fmt.Errorf("counters do not reconcile: kept %d + duplicates %d != valid %d",
			c.KeptAfterDedup, c.DuplicatesRemoved, c.Valid)
	}
	return nil
}

func (c *Counters) mergeRejects(reasons map[string]int) {
	if c.RejectReasons == nil {
		c.RejectReasons = make(map[string]int)
	}
	for reason, n := range reasons {
		c.RejectReasons[reason] += n
	}
}
