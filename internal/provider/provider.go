// Package provider abstracts the generation backend behind a single
// operation with two signaled failure modes. The mock and the live client
// are interchangeable; orchestration code never branches on which one is
// active.
package provider

import (
	"context"
	"errors"

	"copyforge/internal/ads"
)

// Kind identifies which agent role a request plays.
type Kind int

const (
	// KindStrategy asks for a root-cause analysis and creative angle for
	// one underperforming record.
	KindStrategy Kind = iota
	// KindHeadline asks for a batch of headline candidates.
	KindHeadline
	// KindDescription asks for a batch of description candidates.
	KindDescription
	// KindReview asks for a compliance review of already-generated copy.
	KindReview
	// KindBrandVoice asks for a short style guideline injected into the
	// generation prompts.
	KindBrandVoice
)

// String returns the role name used in logs and the mock call log.
func (k Kind) String() string {
	switch k {
	case KindStrategy:
		return "strategy"
	case KindHeadline:
		return "headline"
	case KindDescription:
		return "description"
	case KindReview:
		return "review"
	case KindBrandVoice:
		return "brand_voice"
	}
	return "unknown"
}

// Request carries the context for one backend call. Count is the number of
// candidate strings requested for headline/description kinds.
type Request struct {
	Kind  Kind
	Count int

	Record   ads.Record
	Issue    string // selector reason string
	Strategy string
	MaxChars int

	// MemoryContext is a bounded excerpt of recent learning-log entries for
	// the record's campaign.
	MemoryContext string

	// BrandVoice is the rendered guideline block injected into generation
	// prompts; empty when the brand-voice pass produced nothing.
	BrandVoice string

	// Brand-voice inputs.
	Tone           string
	Audience       string
	ForbiddenWords []string

	// Review inputs.
	Headlines    []string
	Descriptions []string
}

// Provider is the generation backend capability: one operation, raw text out.
// Errors are classified transient (retry with backoff) or fatal (abort this
// record's generation only) via IsTransient.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrTransient marks failures worth retrying: timeouts, rate limits,
// server overload. Wrap with fmt.Errorf("...: %w", ErrTransient).
var ErrTransient = errors.New("transient backend failure")

// ErrBudgetExhausted is the fatal error returned once a run's backend-call
// budget is spent.
var ErrBudgetExhausted = errors.New("backend call budget exhausted")

// IsTransient reports whether err should be retried with backoff. Context
// cancellation is never transient: it means the run is being aborted.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}
