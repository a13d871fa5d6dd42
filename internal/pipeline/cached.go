package pipeline

import (
	"context"
	"fmt"
	"strings"

	"copyforge/internal/cache"
	"copyforge/internal/provider"
)

// cachedProvider serves repeat requests from the SQLite response cache.
// The key covers the ad, the strategy, the requested count and every config
// setting that shapes the output, so a stale hit is impossible without a
// config change being visible in the fingerprint. Review requests are never
// cached: their input is the generated copy itself.
type cachedProvider struct {
	inner       provider.Provider
	store       *cache.Store
	fingerprint string
}

func (c *cachedProvider) Generate(ctx context.Context, req provider.Request) (string, error) {
	if req.Kind == provider.KindReview {
		return c.inner.Generate(ctx, req)
	}
	key := c.key(req)
	if val, ok := c.store.Get(key); ok {
		return val, nil
	}
	out, err := c.inner.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if err := c.store.Set(key, out); err != nil {
		// A failed cache write costs a future hit, nothing else.
		return out, nil
	}
	return out, nil
}

func (c *cachedProvider) key(req provider.Request) string {
	hypothesis := req.Strategy
	switch req.Kind {
	case provider.KindStrategy:
		hypothesis = req.Issue
	case provider.KindBrandVoice:
		hypothesis = req.Tone + "|" + req.Audience + "|" + strings.Join(req.ForbiddenWords, ",")
	}
	if req.BrandVoice != "" {
		// The guideline shapes the generation prompt, so it is part of the
		// request identity.
		hypothesis += "\n" + req.BrandVoice
	}
	return fmt.Sprintf("%s:%s:%d", cache.Key(req.Record.AdID, c.fingerprint, hypothesis), req.Kind, req.Count)
}
