package resilience

import (
	"context"
	"time"
)

// Tier bundles the timeout and retry budget assigned to a connector.
// Every fetch attempt runs under its own deadline; the deadline aborts only
// that attempt, leaving sibling source tasks untouched.
type Tier struct {
	Name      string
	Timeout   time.Duration
	Retries   int
	BaseDelay time.Duration
}

// Connector tiers. Internal calls get a tight deadline and no retries; slow
// scrape targets get the largest budget.
var (
	TierInternal = Tier{Name: "internal", Timeout: 2 * time.Second, Retries: 0, BaseDelay: 250 * time.Millisecond}
	TierFast     = Tier{Name: "fast", Timeout: 5 * time.Second, Retries: 1, BaseDelay: 500 * time.Millisecond}
	TierSlow     = Tier{Name: "slow", Timeout: 10 * time.Second, Retries: 2, BaseDelay: time.Second}
)

// TierByName resolves a tier label from configuration. Unknown labels fall
// back to the fast tier.
func TierByName(name string) Tier {
	switch name {
	case "internal":
		return TierInternal
	case "slow":
		return TierSlow
	default:
		return TierFast
	}
}

// Run executes fn under the tier's per-attempt timeout and retry budget.
func (t Tier) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := RunVal(ctx, t, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RunVal is Run for functions that return a value.
func RunVal[T any](ctx context.Context, t Tier, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := RetryConfig{
		MaxAttempts: t.Retries + 1,
		BaseDelay:   t.BaseDelay,
	}
	return DoVal(ctx, cfg, func(ctx context.Context) (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, t.Timeout)
		defer cancel()
		return fn(attemptCtx)
	})
}
