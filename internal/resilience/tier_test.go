package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTierByName(t *testing.T) {
	if TierByName("internal").Timeout != 2*time.Second {
		t.Error("internal tier should have a 2s timeout")
	}
	if TierByName("slow").Retries != 2 {
		t.Error("slow tier should allow 2 retries")
	}
	if TierByName("bogus").Name != "fast" {
		t.Error("unknown tiers should fall back to fast")
	}
}

func TestTierRun_AppliesDeadline(t *testing.T) {
	tier := Tier{Name: "test", Timeout: 10 * time.Millisecond, Retries: 0, BaseDelay: time.Millisecond}

	err := tier.Run(context.Background(), func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		if !ok {
			t.Fatal("expected a deadline on the attempt context")
		}
		if time.Until(deadline) > 10*time.Millisecond {
			t.Error("deadline exceeds the tier timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTierRun_RetriesWithinBudget(t *testing.T) {
	tier := Tier{Name: "test", Timeout: 50 * time.Millisecond, Retries: 2, BaseDelay: time.Millisecond}

	var calls int
	err := tier.Run(context.Background(), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("flaky"), 502)
	})
	if err == nil {
		t.Fatal("expected error after budget exhausted")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", calls)
	}
}

func TestTierRun_TimeoutAbortsOnlyOneAttempt(t *testing.T) {
	tier := Tier{Name: "test", Timeout: 5 * time.Millisecond, Retries: 1, BaseDelay: time.Millisecond}

	var calls int
	_, err := RunVal(context.Background(), tier, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return calls, nil
	})
	if err != nil {
		t.Fatalf("second attempt should have succeeded: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}
