package provider

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Mock is the offline backend. Responses are derived from a hash of the
// request identity (ad id + kind), never from call order, so output is
// identical regardless of worker scheduling.
type Mock struct {
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records one request for test inspection.
type MockCall struct {
	Kind Kind
	AdID string
}

// NewMock returns an offline provider.
func NewMock() *Mock { return &Mock{} }

var mockHeadlinePool = []string{
	"Shop Smarter Today",
	"Save Big This Season",
	"New Styles Just Dropped",
	"Your Upgrade Starts Here",
	"Deals Worth Clicking",
	"Fresh Picks For You",
	"Limited Stock Remaining",
	"Trusted By Thousands",
	"Find Your Perfect Fit",
	"Quality You Can Feel",
	"Simple Prices No Surprises",
	"Built To Last Longer",
	"Top Rated This Month",
	"More Value Less Cost",
	"Order Now Ships Fast",
	"Designed For Real Life",
}

var mockDescriptionPool = []string{
	"Discover products customers come back for, backed by a simple return policy.",
	"Compare options side by side and pick what actually fits your budget.",
	"Free shipping on qualifying orders with delivery in two business days.",
	"Thousands of verified reviews help you choose with confidence.",
	"Seasonal pricing ends soon, so lock in your order while stock lasts.",
	"Every item is checked twice before it ships to your door.",
	"Switch in minutes and keep everything you already rely on.",
	"Clear pricing with no hidden fees at checkout, ever.",
	"Curated picks updated weekly based on what shoppers love.",
	"A smarter way to shop that saves time and money.",
}

var mockAngles = []string{"urgency", "social_proof", "benefit", "problem_solution", "curiosity"}

// Generate answers from fixed English pools. Headline and description
// requests rotate through the pool starting at a hash-derived offset so
// different ads get different (but stable) copy.
func (m *Mock) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Kind: req.Kind, AdID: req.Record.AdID})
	m.mu.Unlock()

	switch req.Kind {
	case KindStrategy:
		angle := mockAngles[mockOffset(req.Record.AdID, req.Kind)%uint64(len(mockAngles))]
		out, _ := json.Marshal(map[string]string{
			"analysis": fmt.Sprintf("Ad %s underperforms on the flagged metrics; the current copy reads generic for %s.",
				req.Record.AdID, req.Record.AdGroup),
			"strategy": fmt.Sprintf("Lead with a %s angle and make the offer concrete.", angle),
		})
		return string(out), nil
	case KindHeadline:
		return mockBatch(req, mockHeadlinePool), nil
	case KindDescription:
		return mockBatch(req, mockDescriptionPool), nil
	case KindReview:
		// The mock reviewer never flags anything.
		return `{"violations": []}`, nil
	case KindBrandVoice:
		out, _ := json.Marshal(map[string]any{
			"guideline": fmt.Sprintf("Write for %s in a %s voice; every claim must be concrete.",
				req.Audience, req.Tone),
			"examples": []string{"Ships in two business days", "Priced per seat, no minimums"},
		})
		return string(out), nil
	}
	return "", fmt.Errorf("unsupported request kind %d", req.Kind)
}

// Calls returns a copy of the recorded call log.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func mockOffset(adID string, kind Kind) uint64 {
	sum := sha256.Sum256([]byte(adID + ":" + kind.String()))
	return binary.BigEndian.Uint64(sum[:8])
}

func mockBatch(req Request, pool []string) string {
	n := req.Count
	if n <= 0 {
		n = 1
	}
	off := mockOffset(req.Record.AdID, req.Kind)
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s := pool[(off+uint64(i))%uint64(len(pool))]
		if req.MaxChars > 0 && len([]rune(s)) > req.MaxChars {
			s = string([]rune(s)[:req.MaxChars])
			s = strings.TrimRight(s, " ")
		}
		items = append(items, s)
	}
	out, _ := json.Marshal(map[string][]string{"items": items})
	return string(out)
}
