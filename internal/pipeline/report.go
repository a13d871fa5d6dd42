package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FormatReport renders the run summary as markdown.
func FormatReport(s *Summary) string {
	var b strings.Builder
	c := s.Counters

	fmt.Fprintf(&b, "# Copy Generation Run %s\n\n", s.RunID)
	fmt.Fprintf(&b, "Date: %s\n\n", s.Started.Format(time.RFC3339))

	b.WriteString("## Counters\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Records ingested | %d |\n", c.Ingested)
	fmt.Fprintf(&b, "| Records selected | %d |\n", c.Selected)
	fmt.Fprintf(&b, "| Candidates generated | %d |\n", c.Generated)
	fmt.Fprintf(&b, "| Candidates valid | %d |\n", c.Valid)
	fmt.Fprintf(&b, "| Candidates rejected | %d |\n", c.Rejected)
	fmt.Fprintf(&b, "| Duplicates removed | %d |\n", c.DuplicatesRemoved)
	fmt.Fprintf(&b, "| Review flagged | %d |\n", c.ReviewFlagged)
	fmt.Fprintf(&b, "| Compliance flagged | %d |\n", c.ComplianceFlagged)
	fmt.Fprintf(&b, "| Variant sets | %d |\n", c.VariantSets)
	fmt.Fprintf(&b, "| Variants exported | %d |\n", c.Variants)
	fmt.Fprintf(&b, "| Exhausted candidate pools | %d |\n", c.ExhaustedSets)
	fmt.Fprintf(&b, "| Failed records | %d |\n", c.FailedRecords)
	fmt.Fprintf(&b, "| Backend calls | %d |\n", c.BackendCalls)
	fmt.Fprintf(&b, "| Backend retries | %d |\n", c.BackendRetries)
	if s.CacheStats != nil {
		fmt.Fprintf(&b, "| Cache hits | %d |\n", c.CacheHits)
		fmt.Fprintf(&b, "| Cache misses | %d |\n", c.CacheMisses)
	}
	b.WriteString("\n")

	if len(c.RejectReasons) > 0 {
		b.WriteString("## Rejection Breakdown\n\n")
		reasons := make([]string, 0, len(c.RejectReasons))
		for reason := range c.RejectReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Fprintf(&b, "- %s: %d\n", reason, c.RejectReasons[reason])
		}
		b.WriteString("\n")
	}

	if len(s.Reasons) > 0 {
		b.WriteString("## Selected Records\n\n")
		for _, r := range s.Reasons {
			fmt.Fprintf(&b, "- **%s** (%s / %s): %s\n", r.AdID, r.Campaign, r.AdGroup, r.Reasons)
		}
		b.WriteString("\n")
	}

	if len(s.AngleDistribution) > 0 && s.Counters.VariantSets > 0 {
		b.WriteString("## Angle Distribution\n\n")
		angles := make([]string, 0, len(s.AngleDistribution))
		for a := range s.AngleDistribution {
			angles = append(angles, a)
		}
		sort.Strings(angles)
		for _, a := range angles {
			fmt.Fprintf(&b, "- %s: %d\n", a, s.AngleDistribution[a])
		}
		b.WriteString("\n")
	}

	if len(s.Sets) > 0 {
		b.WriteString("## Variant Sets\n\n")
		for _, vs := range s.Sets {
			fmt.Fprintf(&b, "### %s (%s)\n\n", vs.AdID, vs.ID)
			fmt.Fprintf(&b, "Strategy: %s\n\nAngle: %s\n\nVariants: %d\n\n",
				vs.Strategy, vs.Angle, len(vs.Variants))
		}
	}

	return b.String()
}
