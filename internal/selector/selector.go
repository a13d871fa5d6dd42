// Package selector picks the underperforming records that deserve new copy.
// Selection is a pure function of the input rows and thresholds: no I/O, no
// mutation, stable input order.
package selector

import (
	"fmt"
	"math"
	"strings"

	"copyforge/internal/ads"
	"copyforge/internal/config"
)

// Select applies the significance floor and the performance thresholds.
// Records below min_impressions are excluded outright, their data is too
// thin to judge. Of the rest, a record is selected when ANY threshold
// fails, and its reason string enumerates every failing threshold, not
// just the first. A derived metric that is NaN (zero denominator) fails
// its threshold: no data is treated as bad data.
func Select(records []ads.Record, cfg config.SelectorConfig) ads.Selection {
	var sel ads.Selection
	for _, r := range records {
		if r.Impressions < cfg.MinImpressions {
			continue
		}
		reasons := evaluate(r, cfg)
		if len(reasons) == 0 {
			continue
		}
		sel.Records = append(sel.Records, r)
		sel.Reasons = append(sel.Reasons, ads.Reason{
			AdID:     r.AdID,
			Campaign: r.Campaign,
			AdGroup:  r.AdGroup,
			Reasons:  strings.Join(reasons, "; "),
		})
	}
	return sel
}

func evaluate(r ads.Record, cfg config.SelectorConfig) []string {
	var reasons []string
	if ctr := r.CTR(); math.IsNaN(ctr) || ctr < cfg.MinCTR {
		reasons = append(reasons, fmt.Sprintf("CTR %s < %.4f", formatMetric(ctr, "%.4f"), cfg.MinCTR))
	}
	if cpa := r.CPA(); math.IsNaN(cpa) || cpa > cfg.MaxCPA {
		reasons = append(reasons, fmt.Sprintf("CPA %s > %.2f", formatMetric(cpa, "%.2f"), cfg.MaxCPA))
	}
	if roas := r.ROAS(); math.IsNaN(roas) || roas < cfg.MinROAS {
		reasons = append(reasons, fmt.Sprintf("ROAS %s < %.2f", formatMetric(roas, "%.2f"), cfg.MinROAS))
	}
	return reasons
}

func formatMetric(v float64, layout string) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf(layout, v)
}
