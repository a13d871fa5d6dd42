// Package config loads the copyforge YAML configuration. Every section has
// working defaults so the pipeline runs without a config file at all; a file,
// when present, overrides only the fields it sets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SelectorConfig holds the underperformance thresholds. A record must have at
// least MinImpressions before it is evaluated at all.
type SelectorConfig struct {
	MinImpressions int     `yaml:"min_impressions"`
	MinCTR         float64 `yaml:"min_ctr"`
	MaxCPA         float64 `yaml:"max_cpa"`
	MinROAS        float64 `yaml:"min_roas"`
}

// GenerationConfig bounds candidate generation per selected record.
type GenerationConfig struct {
	NumHeadlines        int `yaml:"num_headlines"`
	NumDescriptions     int `yaml:"num_descriptions"`
	MaxHeadlineChars    int `yaml:"max_headline_chars"`
	MaxDescriptionChars int `yaml:"max_description_chars"`
	// MaxAttempts is the quota-retry budget: how many generation attempts a
	// field gets to reach its valid-candidate quota.
	MaxAttempts            int `yaml:"max_attempts"`
	MaxVariantsPerRun      int `yaml:"max_variants_per_run"`
	MaxHeadlineVariants    int `yaml:"max_headline_variants"`
	MaxDescriptionVariants int `yaml:"max_description_variants"`
}

// DedupeConfig controls near-duplicate collapsing.
type DedupeConfig struct {
	// SimilarityThreshold is on the 0-100 scale shared by both ratio
	// implementations; candidates scoring >= threshold against a kept
	// representative are discarded.
	SimilarityThreshold int `yaml:"similarity_threshold"`
	// Algorithm selects the ratio implementation: "levenshtein" (primary)
	// or "lcs" (fallback). Thresholds are comparable across both.
	Algorithm string `yaml:"algorithm"`
	// AcrossAttempts collapses candidates from different generation attempts
	// against each other before cross-product formation. When false, only
	// candidates within the same attempt batch are compared.
	AcrossAttempts bool `yaml:"across_attempts"`
	// MinDistinctAngles is how many creative-angle buckets the kept headline
	// pool should cover; the diversity pass prefers angle representatives
	// over pool order when trimming to the variant cap.
	MinDistinctAngles int `yaml:"min_distinct_angles"`
}

// PolicyConfig holds compliance constraints applied by the validator.
type PolicyConfig struct {
	BlockedPatterns   []string `yaml:"blocked_patterns"`
	MaxUppercaseRatio float64  `yaml:"max_uppercase_ratio"`
}

// BrandVoiceConfig feeds the brand-voice guideline pass that shapes
// generation prompts.
type BrandVoiceConfig struct {
	Tone           string   `yaml:"tone"`
	Audience       string   `yaml:"audience"`
	ForbiddenWords []string `yaml:"forbidden_words"`
}

// ProviderConfig selects and tunes the generation backend.
type ProviderConfig struct {
	Name        string  `yaml:"name"` // "mock" or "anthropic"
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	BaseURL     string  `yaml:"base_url"`
}

// MemoryConfig locates the learning log.
type MemoryConfig struct {
	Path string `yaml:"path"`
	// ContextEntries bounds how many recent entries per campaign are fed
	// back into generation context.
	ContextEntries int `yaml:"context_entries"`
}

// RetryConfig shapes backend-failure retries (exponential backoff + jitter).
// These are separate from GenerationConfig.MaxAttempts: a backend failure
// consumes a retry slot, not a generation-attempt slot.
type RetryConfig struct {
	MaxRetries         int     `yaml:"max_retries"`
	BackoffBaseSeconds float64 `yaml:"backoff_base_seconds"`
	BackoffMaxSeconds  float64 `yaml:"backoff_max_seconds"`
	JitterMaxSeconds   float64 `yaml:"jitter_max_seconds"`
}

// Base returns the backoff base as a duration.
func (r RetryConfig) Base() time.Duration {
	return time.Duration(r.BackoffBaseSeconds * float64(time.Second))
}

// Max returns the backoff ceiling as a duration.
func (r RetryConfig) Max() time.Duration {
	return time.Duration(r.BackoffMaxSeconds * float64(time.Second))
}

// Jitter returns the jitter bound as a duration.
func (r RetryConfig) Jitter() time.Duration {
	return time.Duration(r.JitterMaxSeconds * float64(time.Second))
}

// BudgetConfig caps live API spend.
type BudgetConfig struct {
	// MaxCallsPerRun is the hard cap on backend calls for one pipeline run;
	// 0 means unlimited.
	MaxCallsPerRun int `yaml:"max_calls_per_run"`
}

// CacheConfig controls the SQLite-backed response cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RuntimeConfig bounds pipeline concurrency and backend call timeouts.
type RuntimeConfig struct {
	Workers        int `yaml:"workers"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the per-call backend timeout as a duration.
func (r RuntimeConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Config is the full application configuration.
type Config struct {
	Selector   SelectorConfig   `yaml:"selector"`
	Generation GenerationConfig `yaml:"generation"`
	Dedupe     DedupeConfig     `yaml:"dedupe"`
	Policy     PolicyConfig     `yaml:"policy"`
	BrandVoice BrandVoiceConfig `yaml:"brand_voice"`
	Provider   ProviderConfig   `yaml:"provider"`
	Memory     MemoryConfig     `yaml:"memory"`
	Retry      RetryConfig      `yaml:"retry"`
	Budget     BudgetConfig     `yaml:"budget"`
	Cache      CacheConfig      `yaml:"cache"`
	Runtime    RuntimeConfig    `yaml:"runtime"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Selector: SelectorConfig{
			MinImpressions: 1000,
			MinCTR:         0.02,
			MaxCPA:         50.0,
			MinROAS:        2.0,
		},
		Generation: GenerationConfig{
			NumHeadlines:           10,
			NumDescriptions:        6,
			MaxHeadlineChars:       30,
			MaxDescriptionChars:    90,
			MaxAttempts:            3,
			MaxVariantsPerRun:      100,
			MaxHeadlineVariants:    5,
			MaxDescriptionVariants: 3,
		},
		Dedupe: DedupeConfig{
			SimilarityThreshold: 85,
			Algorithm:           "levenshtein",
			AcrossAttempts:      true,
			MinDistinctAngles:   3,
		},
		Policy: PolicyConfig{
			BlockedPatterns: []string{
				`(?i)\bguaranteed?\b`,
				`(?i)\bbest\b`,
				`(?i)\b#1\b`,
				`(?i)\bno\.?\s*1\b`,
				`(?i)100%`,
			},
			MaxUppercaseRatio: 0.8,
		},
		BrandVoice: BrandVoiceConfig{
			Tone:           "clear, credible, and action-oriented",
			Audience:       "prospects comparing options",
			ForbiddenWords: []string{"guarantee", "best", "no.1", "#1", "100%"},
		},
		Provider: ProviderConfig{
			Name:        "anthropic",
			Model:       "claude-sonnet-4-5-20250929",
			Temperature: 0.8,
			MaxTokens:   2048,
			BaseURL:     "https://api.anthropic.com",
		},
		Memory: MemoryConfig{
			Path:           "memory/memory.jsonl",
			ContextEntries: 5,
		},
		Retry: RetryConfig{
			MaxRetries:         3,
			BackoffBaseSeconds: 1.0,
			BackoffMaxSeconds:  60.0,
			JitterMaxSeconds:   0.5,
		},
		Budget: BudgetConfig{
			MaxCallsPerRun: 50,
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    "cache/responses.db",
		},
		Runtime: RuntimeConfig{
			Workers:        4,
			TimeoutSeconds: 60,
		},
	}
}

// Load reads the YAML config at path, layering it over Default. A missing
// file is not an error: defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
