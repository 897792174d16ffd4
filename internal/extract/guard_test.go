package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-cli/internal/resilience"
)

type scriptedExtractor struct {
	calls int
	errs  []error
}

func (s *scriptedExtractor) Extract(_ context.Context, _ Article) (*ParsedFields, error) {
	s.calls++
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return nil, s.errs[s.calls-1]
	}
	return &ParsedFields{CompanyName: "Acme", ConfidenceScore: 90}, nil
}

func testTier() resilience.Tier {
	return resilience.Tier{Name: "test", Timeout: time.Second, Retries: 0, BaseDelay: time.Millisecond}
}

func TestGuardedTripsOnTransientFailures(t *testing.T) {
	transient := &resilience.TransientError{Err: eris.New("upstream down")}
	inner := &scriptedExtractor{errs: []error{transient, transient}}
	circuit := resilience.NewCircuit("extract", resilience.CircuitConfig{FailureThreshold: 2})
	g := NewGuarded(inner, circuit, testTier())

	ctx := context.Background()
	for range 2 {
		if _, err := g.Extract(ctx, Article{URL: "https://x.test/1"}); err == nil {
			t.Fatal("expected failure")
		}
	}

	// Breaker open: the inner extractor is not called again.
	before := inner.calls
	_, err := g.Extract(ctx, Article{URL: "https://x.test/2"})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if inner.calls != before {
		t.Error("open circuit must short-circuit the call")
	}
}

func TestGuardedParseErrorDoesNotTrip(t *testing.T) {
	bad := &resilience.ParseError{Item: "https://x.test/1", Err: eris.New("garbled")}
	inner := &scriptedExtractor{errs: []error{bad, bad, bad, nil}}
	circuit := resilience.NewCircuit("extract", resilience.CircuitConfig{FailureThreshold: 2})
	g := NewGuarded(inner, circuit, testTier())

	ctx := context.Background()
	for range 3 {
		if _, err := g.Extract(ctx, Article{}); !resilience.IsParseError(err) {
			t.Fatalf("expected ParseError, got %v", err)
		}
	}

	// Bad articles are not source failures; the fourth call goes through.
	fields, err := g.Extract(ctx, Article{})
	if err != nil || fields.CompanyName != "Acme" {
		t.Errorf("circuit should stay closed across parse errors: %v", err)
	}
}
