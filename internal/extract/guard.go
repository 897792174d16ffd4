package extract

import (
	"context"

	"github.com/sells-group/funding-cli/internal/resilience"
)

// Guarded wraps an Extractor with a circuit breaker and a timeout tier.
// Transient extraction failures trip the breaker; a ParseError is a bad
// article, counts as a healthy call, and is returned as-is.
type Guarded struct {
	inner   Extractor
	circuit *resilience.Circuit
	tier    resilience.Tier
}

// NewGuarded wraps inner with the given circuit and tier.
func NewGuarded(inner Extractor, circuit *resilience.Circuit, tier resilience.Tier) *Guarded {
	return &Guarded{inner: inner, circuit: circuit, tier: tier}
}

// Extract runs the inner extractor under the breaker and tier budget.
func (g *Guarded) Extract(ctx context.Context, article Article) (*ParsedFields, error) {
	if err := g.circuit.Allow(); err != nil {
		return nil, err
	}

	fields, err := resilience.RunVal(ctx, g.tier, func(ctx context.Context) (*ParsedFields, error) {
		return g.inner.Extract(ctx, article)
	})
	switch {
	case err == nil, resilience.IsParseError(err):
		g.circuit.RecordSuccess()
	default:
		g.circuit.RecordFailure()
	}
	return fields, err
}
