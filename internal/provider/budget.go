package provider

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Budgeted enforces a per-run cap on backend calls. Once the cap is hit
// every further call fails fast with ErrBudgetExhausted, which is fatal by
// classification and stops burning money on a runaway run.
type Budgeted struct {
	inner Provider
	max   int64
	calls atomic.Int64
}

// NewBudgeted wraps inner with a call cap. max <= 0 means unlimited.
func NewBudgeted(inner Provider, max int) *Budgeted {
	return &Budgeted{inner: inner, max: int64(max)}
}

// Generate forwards to the wrapped provider unless the budget is spent.
func (b *Budgeted) Generate(ctx context.Context, req Request) (string, error) {
	n := b.calls.Add(1)
	if b.max > 0 && n > b.max {
		b.calls.Add(-1)
		return "", fmt.Errorf("%w (limit %d)", ErrBudgetExhausted, b.max)
	}
	return b.inner.Generate(ctx, req)
}

// Calls reports how many backend calls were admitted.
func (b *Budgeted) Calls() int64 {
	n := b.calls.Load()
	if b.max > 0 && n > b.max {
		return b.max
	}
	return n
}
