// Package resilience provides the circuit breaker, retry, and timeout
// primitives that guard every external source call in the ingestion pipeline.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state — calls flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the source is failing — calls are rejected without
	// any network attempt until the cooldown elapses.
	CircuitOpen
	// CircuitHalfOpen allows probe calls to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitConfig controls circuit breaker behavior.
type CircuitConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens. Default: 4.
	FailureThreshold int

	// Cooldown is how long the circuit stays open before the next call is
	// allowed through as a half-open probe. Default: 60s.
	Cooldown time.Duration

	// SuccessThreshold is the number of successful probes required in
	// half-open state before the circuit closes again. Default: 2.
	SuccessThreshold int

	// OnStateChange is called when the circuit transitions between states.
	OnStateChange func(source string, from, to CircuitState)
}

// DefaultCircuitConfig returns the defaults used for ingestion sources.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		FailureThreshold: 4,
		Cooldown:         60 * time.Second,
		SuccessThreshold: 2,
	}
}

// Circuit is the health tracker for a single named source. State is
// process-local: a cold process starts every circuit closed.
type Circuit struct {
	source string
	cfg    CircuitConfig

	mu                sync.Mutex
	state             CircuitState
	failures          int
	lastFailureAt     time.Time
	halfOpenSuccesses int

	nowFunc func() time.Time
}

// NewCircuit creates a circuit breaker for the named source.
func NewCircuit(source string, cfg CircuitConfig) *Circuit {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 4
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	return &Circuit{
		source:  source,
		cfg:     cfg,
		state:   CircuitClosed,
		nowFunc: time.Now,
	}
}

// Allow reports whether a call may proceed. When the cooldown has elapsed on
// an open circuit the state moves to half-open and the call is allowed as a
// probe. Returns ErrCircuitOpen otherwise.
func (c *Circuit) Allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == CircuitOpen {
		if c.nowFunc().Sub(c.lastFailureAt) >= c.cfg.Cooldown {
			c.transition(CircuitHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	}
	return nil
}

// RecordSuccess registers a successful call.
func (c *Circuit) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CircuitHalfOpen:
		c.halfOpenSuccesses++
		if c.halfOpenSuccesses >= c.cfg.SuccessThreshold {
			c.transition(CircuitClosed)
			c.failures = 0
			c.halfOpenSuccesses = 0
		}
	case CircuitClosed:
		c.failures = 0
	}
}

// RecordFailure registers a failed call. In half-open state any failure
// reopens the circuit and restarts the cooldown.
func (c *Circuit) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures++
	c.lastFailureAt = c.nowFunc()

	switch c.state {
	case CircuitClosed:
		if c.failures >= c.cfg.FailureThreshold {
			c.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		c.transition(CircuitOpen)
		c.halfOpenSuccesses = 0
	}
}

// Execute runs fn through the circuit breaker.
func (c *Circuit) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	if err != nil {
		c.RecordFailure()
	} else {
		c.RecordSuccess()
	}
	return err
}

// IsOpen reports whether calls would currently be rejected.
func (c *Circuit) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CircuitOpen {
		return false
	}
	return c.nowFunc().Sub(c.lastFailureAt) < c.cfg.Cooldown
}

// State returns the current circuit state, accounting for cooldown expiry.
func (c *Circuit) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CircuitOpen && c.nowFunc().Sub(c.lastFailureAt) >= c.cfg.Cooldown {
		return CircuitHalfOpen
	}
	return c.state
}

// Snapshot returns the failure count, last failure time, and raw state.
func (c *Circuit) Snapshot() (failures int, lastFailureAt time.Time, state CircuitState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures, c.lastFailureAt, c.state
}

func (c *Circuit) transition(to CircuitState) {
	from := c.state
	c.state = to
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(c.source, from, to)
	}
}

// Breakers is the process-local registry of per-source circuit breakers.
// Each external-dependency family (the LLM parser, each scrape target) gets
// its own named circuit. Safe for concurrent use by source tasks.
type Breakers struct {
	mu       sync.RWMutex
	circuits map[string]*Circuit
	cfg      CircuitConfig
}

// NewBreakers creates a registry of per-source circuit breakers.
func NewBreakers(cfg CircuitConfig) *Breakers {
	return &Breakers{
		circuits: make(map[string]*Circuit),
		cfg:      cfg,
	}
}

// Get returns the circuit for the named source, creating one if needed.
func (b *Breakers) Get(source string) *Circuit {
	b.mu.RLock()
	c, ok := b.circuits[source]
	b.mu.RUnlock()
	if ok {
		return c
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok = b.circuits[source]; ok {
		return c
	}
	c = NewCircuit(source, b.cfg)
	b.circuits[source] = c
	return c
}

// States returns a snapshot of all circuit states keyed by source name.
func (b *Breakers) States() map[string]CircuitState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	states := make(map[string]CircuitState, len(b.circuits))
	for name, c := range b.circuits {
		states[name] = c.State()
	}
	return states
}
