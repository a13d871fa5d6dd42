package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"copyforge/internal/config"
)

// Retrier wraps a provider with bounded retries on transient failures.
// Backoff is exponential with a deterministic bounded jitter; fatal errors
// and context cancellation pass straight through.
type Retrier struct {
	inner Provider
	cfg   config.RetryConfig
	log   *slog.Logger
	sleep func(context.Context, time.Duration) error

	retries atomic.Int64
}

// NewRetrier wraps inner with the configured retry policy.
func NewRetrier(inner Provider, cfg config.RetryConfig, log *slog.Logger) *Retrier {
	return &Retrier{inner: inner, cfg: cfg, log: log, sleep: sleepCtx}
}

// Generate calls the wrapped provider, retrying transient failures up to
// max_retries additional times.
func (r *Retrier) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff(attempt, req)
			r.log.Warn("retrying backend call",
				"kind", req.Kind.String(), "ad_id", req.Record.AdID,
				"attempt", attempt, "delay", delay, "error", lastErr)
			r.retries.Add(1)
			if err := r.sleep(ctx, delay); err != nil {
				return "", err
			}
		}
		out, err := r.inner.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		if !IsTransient(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("retries exhausted after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}

// Retries reports how many backoff sleeps were taken.
func (r *Retrier) Retries() int64 { return r.retries.Load() }

// backoff computes base*2^(attempt-1) capped at max, plus a jitter in
// [0, jitter_max) derived from the request identity so delays stay
// reproducible.
func (r *Retrier) backoff(attempt int, req Request) time.Duration {
	d := time.Duration(float64(r.cfg.Base()) * math.Pow(2, float64(attempt-1)))
	if d > r.cfg.Max() {
		d = r.cfg.Max()
	}
	if j := r.cfg.Jitter(); j > 0 {
		h := fnv.New64a()
		fmt.Fprintf(h, "%s:%s:%d", req.Record.AdID, req.Kind, attempt)
		d += time.Duration(h.Sum64() % uint64(j))
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
