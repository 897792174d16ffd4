package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCircuit_ClosedPassesThrough(t *testing.T) {
	c := NewCircuit("test", DefaultCircuitConfig())

	var calls int
	err := c.Execute(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if c.State() != CircuitClosed {
		t.Errorf("expected closed state, got %s", c.State())
	}
}

func TestCircuit_OpensAfterThreshold(t *testing.T) {
	cfg := CircuitConfig{FailureThreshold: 3, Cooldown: time.Minute}
	c := NewCircuit("test", cfg)

	for i := 0; i < 3; i++ {
		_ = c.Execute(context.Background(), func(_ context.Context) error {
			return errors.New("fail")
		})
	}

	if c.State() != CircuitOpen {
		t.Fatalf("expected open after %d failures, got %s", cfg.FailureThreshold, c.State())
	}
	if !c.IsOpen() {
		t.Error("IsOpen should report true")
	}

	// Rejected immediately, no call attempted.
	err := c.Execute(context.Background(), func(_ context.Context) error {
		t.Error("should not be called when circuit is open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuit_SuccessResetsFailureCount(t *testing.T) {
	c := NewCircuit("test", CircuitConfig{FailureThreshold: 3, Cooldown: time.Minute})

	c.RecordFailure()
	c.RecordFailure()
	c.RecordSuccess()

	failures, _, state := c.Snapshot()
	if failures != 0 {
		t.Errorf("expected 0 failures after success, got %d", failures)
	}
	if state != CircuitClosed {
		t.Errorf("expected closed, got %s", state)
	}
}

func TestCircuit_CooldownAllowsSingleProbe(t *testing.T) {
	now := time.Now()
	c := NewCircuit("test", CircuitConfig{FailureThreshold: 2, Cooldown: time.Minute, SuccessThreshold: 2})
	c.nowFunc = func() time.Time { return now }

	c.RecordFailure()
	c.RecordFailure()
	if c.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", c.State())
	}
	if err := c.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected rejection during cooldown, got %v", err)
	}

	// Advance past the cooldown: the next call is allowed as a probe.
	now = now.Add(61 * time.Second)
	if err := c.Allow(); err != nil {
		t.Fatalf("expected probe to be allowed, got %v", err)
	}
	if _, _, state := c.Snapshot(); state != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %s", state)
	}
}

func TestCircuit_HalfOpenFailureRestartsCooldown(t *testing.T) {
	now := time.Now()
	c := NewCircuit("test", CircuitConfig{FailureThreshold: 2, Cooldown: time.Minute})
	c.nowFunc = func() time.Time { return now }

	c.RecordFailure()
	c.RecordFailure()
	now = now.Add(61 * time.Second)
	if err := c.Allow(); err != nil {
		t.Fatalf("probe should be allowed: %v", err)
	}

	// The probe fails: full cooldown restarts from now.
	c.RecordFailure()
	if _, _, state := c.Snapshot(); state != CircuitOpen {
		t.Fatalf("expected reopened circuit, got %s", state)
	}
	now = now.Add(59 * time.Second)
	if err := c.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("cooldown should not have elapsed yet, got %v", err)
	}
	now = now.Add(2 * time.Second)
	if err := c.Allow(); err != nil {
		t.Errorf("expected probe after restarted cooldown, got %v", err)
	}
}

func TestCircuit_ClosesAfterSuccessThreshold(t *testing.T) {
	now := time.Now()
	c := NewCircuit("test", CircuitConfig{FailureThreshold: 2, Cooldown: time.Minute, SuccessThreshold: 2})
	c.nowFunc = func() time.Time { return now }

	c.RecordFailure()
	c.RecordFailure()
	now = now.Add(61 * time.Second)
	_ = c.Allow()

	c.RecordSuccess()
	if _, _, state := c.Snapshot(); state != CircuitHalfOpen {
		t.Fatalf("one probe success should not close the circuit, got %s", state)
	}
	c.RecordSuccess()
	if _, _, state := c.Snapshot(); state != CircuitClosed {
		t.Fatalf("expected closed after 2 probe successes, got %s", state)
	}
	if failures, _, _ := c.Snapshot(); failures != 0 {
		t.Errorf("expected failure count reset, got %d", failures)
	}
}

func TestCircuit_StateChangeCallback(t *testing.T) {
	var transitions []string
	cfg := CircuitConfig{
		FailureThreshold: 1,
		Cooldown:         time.Minute,
		OnStateChange: func(source string, from, to CircuitState) {
			transitions = append(transitions, source+":"+from.String()+"->"+to.String())
		},
	}
	c := NewCircuit("feed-a", cfg)
	c.RecordFailure()

	if len(transitions) != 1 || transitions[0] != "feed-a:closed->open" {
		t.Errorf("unexpected transitions: %v", transitions)
	}
}

func TestBreakers_ConcurrentGet(t *testing.T) {
	b := NewBreakers(DefaultCircuitConfig())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := b.Get("shared-source")
			c.RecordSuccess()
		}()
	}
	wg.Wait()

	states := b.States()
	if len(states) != 1 {
		t.Fatalf("expected a single circuit, got %d", len(states))
	}
	if states["shared-source"] != CircuitClosed {
		t.Errorf("expected closed, got %s", states["shared-source"])
	}
}
