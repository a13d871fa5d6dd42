// Package generate drives the backend to produce validated candidate pools.
// The attempt loop accumulates valid candidates across attempts, validating
// only each new batch, and stops as soon as the quota is met. Running out of
// attempts degrades the pool, it never fails the run.
package generate

import (
	"context"
	"fmt"
	"log/slog"

	"copyforge/internal/ads"
	"copyforge/internal/config"
	"copyforge/internal/logging"
	"copyforge/internal/provider"
	"copyforge/internal/validate"
)

// Generator produces strategy, candidate pools and review verdicts for one
// record at a time. Safe for concurrent use across records.
type Generator struct {
	backend provider.Provider
	rules   *validate.Rules
	cfg     config.GenerationConfig
	log     *slog.Logger
}

// New builds a generator over a backend and compiled validation rules.
func New(backend provider.Provider, rules *validate.Rules, cfg config.GenerationConfig) *Generator {
	return &Generator{backend: backend, rules: rules, cfg: cfg, log: logging.New("generate")}
}

// Strategy asks the backend for a root-cause analysis and creative strategy
// for one flagged record. memoryContext carries recent learnings for the
// record's campaign and may be empty.
func (g *Generator) Strategy(ctx context.Context, rec ads.Record, issue, memoryContext string) (analysis, strategy string, err error) {
	raw, err := g.backend.Generate(ctx, provider.Request{
		Kind:          provider.KindStrategy,
		Record:        rec,
		Issue:         issue,
		MemoryContext: memoryContext,
	})
	if err != nil {
		return "", "", fmt.Errorf("strategy for %s: %w", rec.AdID, err)
	}
	analysis, strategy = parseStrategy(raw)
	return analysis, strategy, nil
}

// BrandVoice asks the backend for a short style guideline to inject into the
// generation prompts. Like Review it is advisory: any failure or unparsable
// response yields an empty guideline and generation proceeds without one.
func (g *Generator) BrandVoice(ctx context.Context, rec ads.Record, voice config.BrandVoiceConfig) string {
	raw, err := g.backend.Generate(ctx, provider.Request{
		Kind:           provider.KindBrandVoice,
		Record:         rec,
		Tone:           voice.Tone,
		Audience:       voice.Audience,
		ForbiddenWords: voice.ForbiddenWords,
	})
	if err != nil {
		g.log.Warn("brand voice pass skipped", "ad_id", rec.AdID, "error", err)
		return ""
	}
	return parseBrandVoice(raw)
}

// Field generates up to quota valid candidates for one field. Each attempt
// requests a fresh batch, validates only that batch, and appends the
// survivors; the loop stops at the first attempt after which the quota is
// met. A transient backend failure that outlived its retries costs the
// attempt (zero candidates) and the loop continues. A fatal backend failure
// stops the loop and returns the partial set alongside the error.
func (g *Generator) Field(ctx context.Context, rec ads.Record, strategy, memoryContext, brandVoice string, field validate.Field, quota int) (CandidateSet, error) {
	cs := CandidateSet{Field: field, RejectReasons: make(map[string]int)}
	kind := provider.KindHeadline
	if field == validate.FieldDescription {
		kind = provider.KindDescription
	}

	for cs.Attempts < g.cfg.MaxAttempts && cs.ValidCount() < quota {
		cs.Attempts++
		raw, err := g.backend.Generate(ctx, provider.Request{
			Kind:          kind,
			Count:         quota,
			Record:        rec,
			Strategy:      strategy,
			MemoryContext: memoryContext,
			BrandVoice:    brandVoice,
			MaxChars:      g.rules.MaxChars(field),
		})
		if err != nil {
			if provider.IsTransient(err) {
				g.log.Warn("generation attempt produced nothing",
					"ad_id", rec.AdID, "field", field.String(),
					"attempt", cs.Attempts, "error", err)
				continue
			}
			cs.Exhausted = cs.ValidCount() < quota
			return cs, fmt.Errorf("generate %s for %s: %w", field.String(), rec.AdID, err)
		}

		var batch []string
		for _, cand := range parseItems(raw) {
			cs.Generated++
			res := g.rules.Check(cand, field)
			if !res.Valid {
				cs.Rejected++
				for _, v := range res.Violations {
					cs.RejectReasons[v]++
				}
				continue
			}
			batch = append(batch, cand)
		}
		if len(batch) > 0 {
			cs.Batches = append(cs.Batches, batch)
		}
	}

	if cs.ValidCount() < quota {
		cs.Exhausted = true
		g.log.Warn("candidate quota not reached",
			"ad_id", rec.AdID, "field", field.String(),
			"valid", cs.ValidCount(), "quota", quota, "attempts", cs.Attempts)
	}
	return cs, nil
}

// Review runs the policy review pass over the surviving copy and drops the
// flagged items. The review is advisory: if the backend fails or responds
// with something unparsable, all copy is kept and a warning is logged.
func (g *Generator) Review(ctx context.Context, rec ads.Record, headlines, descriptions []string) (keptH, keptD []string, flagged int) {
	raw, err := g.backend.Generate(ctx, provider.Request{
		Kind:         provider.KindReview,
		Record:       rec,
		Headlines:    headlines,
		Descriptions: descriptions,
	})
	if err != nil {
		g.log.Warn("review pass skipped", "ad_id", rec.AdID, "error", err)
		return headlines, descriptions, 0
	}
	violations, ok := parseReview(raw)
	if !ok {
		g.log.Warn("unparsable review response, keeping all copy", "ad_id", rec.AdID)
		return headlines, descriptions, 0
	}

	dropH := make(map[int]bool)
	dropD := make(map[int]bool)
	for _, v := range violations {
		switch v.Type {
		case "headline":
			if v.Index >= 0 && v.Index < len(headlines) && !dropH[v.Index] {
				dropH[v.Index] = true
				flagged++
				g.log.Info("review flagged headline",
					"ad_id", rec.AdID, "text", headlines[v.Index], "issue", v.Issue)
			}
		case "description":
			if v.Index >= 0 && v.Index < len(descriptions) && !dropD[v.Index] {
				dropD[v.Index] = true
				flagged++
				g.log.Info("review flagged description",
					"ad_id", rec.AdID, "text", descriptions[v.Index], "issue", v.Issue)
			}
		}
	}
	for i, h := range headlines {
		if !dropH[i] {
			keptH = append(keptH, h)
		}
	}
	for i, d := range descriptions {
		if !dropD[i] {
			keptD = append(keptD, d)
		}
	}
	return keptH, keptD, flagged
}
