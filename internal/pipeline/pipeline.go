// Package pipeline wires selection, generation, validation, deduplication,
// export and the learning log into one run. Records are processed in
// parallel up to the worker limit; everything observable (export ordering,
// memory append order) is made deterministic again after the parallel stage.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"copyforge/internal/ads"
	"copyforge/internal/cache"
	"copyforge/internal/config"
	"copyforge/internal/dedupe"
	"copyforge/internal/export"
	"copyforge/internal/generate"
	"copyforge/internal/logging"
	"copyforge/internal/memory"
	"copyforge/internal/provider"
	"copyforge/internal/selector"
	"copyforge/internal/validate"
)

// Options configures one Runner.
type Options struct {
	Config  config.Config
	Backend provider.Provider
	Memory  *memory.Log
	// Cache enables response caching when non-nil.
	Cache *cache.Store
	// Stats, when set, reports backend call and retry totals for the summary.
	Stats func() (calls, retries int64)
	// OutDir receives the export artifacts.
	OutDir string
}

// Summary is the run result: reconciled counters plus everything the report
// renders.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time

	Counters          Counters
	Reasons           []ads.Reason
	Sets              []ads.VariantSet
	AngleDistribution map[string]int
	CacheStats        *cache.Stats
}

// Runner executes pipeline runs. One Runner per process is the expected
// shape; Run itself may be called once per input batch.
type Runner struct {
	opts  Options
	rules *validate.Rules
	log   *slog.Logger
}

// New validates the options and builds a Runner.
func New(opts Options) (*Runner, error) {
	rules, err := validate.Compile(opts.Config.Generation, opts.Config.Policy)
	if err != nil {
		return nil, fmt.Errorf("compile validation rules: %w", err)
	}
	if opts.Memory == nil {
		return nil, fmt.Errorf("memory log is required")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("generation backend is required")
	}
	return &Runner{opts: opts, rules: rules}, nil
}

// recordResult is the per-record output of the parallel stage, reassembled
// in selection order afterwards.
type recordResult struct {
	set    ads.VariantSet
	entry  memory.Entry
	ok     bool
	failed bool
	local  Counters
}

// Run executes the full state machine over the ingested records and writes
// the export artifacts. A fatal backend failure on one record fails that
// record only; the returned error is reserved for input defects, export
// failures and accounting violations.
func (r *Runner) Run(ctx context.Context, records []ads.Record) (*Summary, error) {
	runID := uuid.NewString()[:8]
	log := logging.ForRun("pipeline", runID)
	r.log = log

	sum := &Summary{RunID: runID, Started: time.Now().UTC()}
	sum.Counters.Ingested = len(records)
	log.Info("stage complete", "stage", StageIngested, "records", len(records))

	sel := selector.Select(records, r.opts.Config.Selector)
	sum.Counters.Selected = len(sel.Records)
	sum.Reasons = sel.Reasons
	log.Info("stage complete", "stage", StageSelected, "selected", len(sel.Records))

	backend := r.opts.Backend
	if r.opts.Cache != nil {
		backend = &cachedProvider{
			inner:       r.opts.Backend,
			store:       r.opts.Cache,
			fingerprint: cache.Fingerprint(r.opts.Config.Generation, r.opts.Config.Provider),
		}
	}
	gen := generate.New(backend, r.rules, r.opts.Config.Generation)

	results := make([]recordResult, len(sel.Records))
	g, gctx := errgroup.WithContext(ctx)
	workers := r.opts.Config.Runtime.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i := range sel.Records {
		g.Go(func() error {
			results[i] = r.processRecord(gctx, gen, sel.Records[i], sel.Reasons[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		// A cancelled run writes nothing: no partial artifacts, no memory
		// entries.
		return nil, err
	}
	log.Info("stage complete", "stage", StageGenerated)
	log.Info("stage complete", "stage", StageValidated)
	log.Info("stage complete", "stage", StageDeduplicated)

	var sets []ads.VariantSet
	var entries []memory.Entry
	for _, res := range results {
		c := &sum.Counters
		c.Generated += res.local.Generated
		c.Valid += res.local.Valid
		c.Rejected += res.local.Rejected
		c.mergeRejects(res.local.RejectReasons)
		c.DuplicatesRemoved += res.local.DuplicatesRemoved
		c.KeptAfterDedup += res.local.KeptAfterDedup
		c.ReviewFlagged += res.local.ReviewFlagged
		c.ComplianceFlagged += res.local.ComplianceFlagged
		c.ExhaustedSets += res.local.ExhaustedSets
		c.FailedRecords += res.local.FailedRecords
		if res.ok {
			sets = append(sets, res.set)
			entries = append(entries, res.entry)
		}
	}

	// Observable ordering is fixed regardless of worker scheduling: sets by
	// ad id, variants inside a set already carry ordered tags.
	sort.SliceStable(sets, func(i, j int) bool {
		if sets[i].AdID != sets[j].AdID {
			return sets[i].AdID < sets[j].AdID
		}
		return sets[i].ID < sets[j].ID
	})
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].AdID != entries[j].AdID {
			return entries[i].AdID < entries[j].AdID
		}
		return entries[i].VariantSetID < entries[j].VariantSetID
	})
	sets = r.capVariants(sets)

	for i := range sets {
		sum.Counters.VariantSets++
		sum.Counters.Variants += len(sets[i].Variants)
	}
	sum.Sets = sets

	sum.AngleDistribution = angleCounts(sets)

	if err := sum.Counters.Reconcile(); err != nil {
		return nil, err
	}

	if r.opts.Stats != nil {
		sum.Counters.BackendCalls, sum.Counters.BackendRetries = r.opts.Stats()
	}
	if r.opts.Cache != nil {
		st := r.opts.Cache.Stats()
		sum.CacheStats = &st
		sum.Counters.CacheHits = st.Hits
		sum.Counters.CacheMisses = st.Misses
	}
	sum.Finished = time.Now().UTC()

	rows := export.Rows(sets)
	out := r.opts.OutDir
	if err := export.WriteNewAdsCSV(filepath.Join(out, "new_ads.csv"), rows); err != nil {
		return nil, err
	}
	if err := export.WriteVariationsTSV(filepath.Join(out, "variations.tsv"), rows); err != nil {
		return nil, err
	}
	if err := export.WriteHandoffCSV(filepath.Join(out, "handoff.csv"), rows); err != nil {
		return nil, err
	}
	if err := export.WriteReport(filepath.Join(out, "report.md"), FormatReport(sum)); err != nil {
		return nil, err
	}
	log.Info("stage complete", "stage", StageExported, "variant_sets", len(sets), "rows", len(rows))

	// Single-writer discipline: every append happens here, sequentially,
	// after the parallel stage is fully done.
	for _, e := range entries {
		if err := r.opts.Memory.Append(e); err != nil {
			return nil, fmt.Errorf("append memory entry: %w", err)
		}
	}
	log.Info("stage complete", "stage", StageLogged, "entries", len(entries))

	return sum, nil
}

// processRecord runs strategy, generation, dedup and review for one selected
// record. Local counters are merged by the caller; failures are absorbed
// into the result, never propagated as run errors.
func (r *Runner) processRecord(ctx context.Context, gen *generate.Generator, rec ads.Record, reason ads.Reason) recordResult {
	var res recordResult
	cfg := r.opts.Config
	memCtx := r.opts.Memory.ContextExcerpt(rec.Campaign, cfg.Memory.ContextEntries)

	analysis, strategy, err := gen.Strategy(ctx, rec, reason.Reasons, memCtx)
	if err != nil {
		r.log.Error("record failed", "ad_id", rec.AdID, "stage", "strategy", "error", err)
		res.failed = true
		res.local.FailedRecords = 1
		return res
	}

	voice := gen.BrandVoice(ctx, rec, cfg.BrandVoice)

	headCS, headErr := gen.Field(ctx, rec, strategy, memCtx, voice, validate.FieldHeadline, cfg.Generation.NumHeadlines)
	res.absorb(headCS)
	descCS, descErr := gen.Field(ctx, rec, strategy, memCtx, voice, validate.FieldDescription, cfg.Generation.NumDescriptions)
	res.absorb(descCS)
	if headErr != nil || descErr != nil {
		err := headErr
		if err == nil {
			err = descErr
		}
		r.log.Error("record failed", "ad_id", rec.AdID, "stage", "generation", "error", err)
		res.failed = true
		res.local.FailedRecords = 1
		// Dedup never ran for this record, so everything valid counts as kept.
		res.local.KeptAfterDedup = res.local.Valid
		return res
	}

	ratio := dedupe.ForAlgorithm(cfg.Dedupe.Algorithm)
	headlines := r.collapse(headCS, ratio)
	descriptions := r.collapse(descCS, ratio)
	res.local.DuplicatesRemoved += headCS.ValidCount() - len(headlines)
	res.local.DuplicatesRemoved += descCS.ValidCount() - len(descriptions)
	res.local.KeptAfterDedup = len(headlines) + len(descriptions)

	// Trimming to the headline cap goes through the diversity pass, which
	// prefers one representative per creative angle over raw pool order.
	target := cfg.Generation.MaxHeadlineVariants
	if target <= 0 {
		target = len(headlines)
	}
	headlines, missingAngles, _ := dedupe.EnforceDiversity(
		headlines, cfg.Dedupe.SimilarityThreshold, cfg.Dedupe.MinDistinctAngles, target, ratio)
	if len(missingAngles) > 0 {
		r.log.Warn("headline pool short on angle coverage",
			"ad_id", rec.AdID, "missing", missingAngles)
	}
	if max := cfg.Generation.MaxDescriptionVariants; max > 0 && len(descriptions) > max {
		descriptions = descriptions[:max]
	}

	headlines, descriptions, flagged := gen.Review(ctx, rec, headlines, descriptions)
	res.local.ReviewFlagged = flagged

	var compliance []generate.ComplianceFailure
	headlines, descriptions, compliance = generate.FilterRiskyClaims(headlines, descriptions)
	res.local.ComplianceFlagged = len(compliance)
	for _, f := range compliance {
		r.log.Info("risky claim removed", "ad_id", rec.AdID,
			"field", f.Field.String(), "text", f.Text,
			"reason", f.Reason, "suggestion", f.Suggestion)
	}

	if len(headlines) == 0 || len(descriptions) == 0 {
		r.log.Warn("no usable copy for record", "ad_id", rec.AdID,
			"headlines", len(headlines), "descriptions", len(descriptions))
		return res
	}

	angle := dedupe.DetectAngle(strategy + " " + headlines[0])
	vs := ads.VariantSet{
		ID:       VariantSetID(rec.AdID),
		AdID:     rec.AdID,
		Campaign: rec.Campaign,
		AdGroup:  rec.AdGroup,
		Strategy: strategy,
		Angle:    angle,
	}
	tag := 0
	for _, h := range headlines {
		for _, d := range descriptions {
			tag++
			vs.Variants = append(vs.Variants, ads.Variant{
				Headline:    h,
				Description: d,
				Tag:         fmt.Sprintf("V%03d", tag),
			})
		}
	}

	res.set = vs
	res.entry = memory.Entry{
		Campaign:     rec.Campaign,
		AdGroup:      rec.AdGroup,
		AdID:         rec.AdID,
		Hypothesis:   strategy,
		Angle:        angle,
		Tag:          fmt.Sprintf("V001-V%03d", tag),
		VariantSetID: vs.ID,
		Generated: memory.Generated{
			Headlines:    headlines,
			Descriptions: descriptions,
		},
		Notes: analysis,
	}
	res.ok = true
	return res
}

// collapse deduplicates one candidate set, either across all attempts at
// once or within each attempt batch only.
func (r *Runner) collapse(cs generate.CandidateSet, ratio dedupe.RatioFunc) []string {
	threshold := r.opts.Config.Dedupe.SimilarityThreshold
	if r.opts.Config.Dedupe.AcrossAttempts {
		return dedupe.Collapse(cs.Valid(), threshold, ratio)
	}
	var out []string
	for _, batch := range cs.Batches {
		out = append(out, dedupe.Collapse(batch, threshold, ratio)...)
	}
	return out
}

func (res *recordResult) absorb(cs generate.CandidateSet) {
	res.local.Generated += cs.Generated
	res.local.Valid += cs.ValidCount()
	res.local.Rejected += cs.Rejected
	if res.local.RejectReasons == nil {
		res.local.RejectReasons = make(map[string]int)
	}
	for reason, n := range cs.RejectReasons {
		res.local.RejectReasons[reason] += n
	}
	if cs.Exhausted {
		res.local.ExhaustedSets++
	}
}

// capVariants applies the run-wide variant cap in export order, trimming
// from the tail so the kept set is deterministic.
func (r *Runner) capVariants(sets []ads.VariantSet) []ads.VariantSet {
	max := r.opts.Config.Generation.MaxVariantsPerRun
	if max <= 0 {
		return sets
	}
	total := 0
	for i := range sets {
		if total+len(sets[i].Variants) <= max {
			total += len(sets[i].Variants)
			continue
		}
		room := max - total
		sets[i].Variants = sets[i].Variants[:room]
		out := sets[:i+1]
		if room == 0 {
			out = sets[:i]
		}
		r.log.Warn("variant cap reached, trimming export", "cap", max)
		return out
	}
	return sets
}

func angleCounts(sets []ads.VariantSet) map[string]int {
	dist := make(map[string]int, len(dedupe.AngleBuckets))
	for _, b := range dedupe.AngleBuckets {
		dist[b] = 0
	}
	for _, vs := range sets {
		dist[vs.Angle]++
	}
	return dist
}

// VariantSetID derives the stable id for a record's variant set. Determinism
// here is what makes re-runs byte-identical.
func VariantSetID(adID string) string {
	sum := sha256.Sum256([]byte("variant-set:" + adID))
	return "vs_" + hex.EncodeToString(sum[:5])
}
