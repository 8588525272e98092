// Package breaker isolates flaky remote dependencies behind a
// CLOSED / OPEN / HALF_OPEN circuit.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without invoking the operation while the
// circuit is open, or while a half-open trial call is already in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker state.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

const (
	DefaultThreshold = 5
	DefaultTimeout   = 30 * time.Second
)

// Config holds breaker settings.
type Config struct {
	Threshold int
	Timeout   time.Duration
}

// Stats is a snapshot used by health reporting.
type Stats struct {
	State     State      `json:"state"`
	Failures  int        `json:"failures"`
	Threshold int        `json:"threshold"`
	Timeout   string     `json:"timeout"`
	OpenedAt  *time.Time `json:"openedAt,omitempty"`
}

// CircuitBreaker counts consecutive failures and fails fast once the
// threshold is reached.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	timeout   time.Duration
	now       func() time.Time

	state    State
	failures int
	openedAt time.Time
	trialing bool
}

// Option customises a breaker.
type Option func(*CircuitBreaker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *CircuitBreaker) { b.now = now }
}

// New creates a closed breaker. Zero config values fall back to defaults.
func New(cfg Config, opts ...Option) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	b := &CircuitBreaker{
		threshold: cfg.Threshold,
		timeout:   cfg.Timeout,
		now:       time.Now,
		state:     StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute runs op if the circuit admits it and records the outcome. A call
// whose context ended is not counted either way.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := op(ctx)
	if ctx.Err() != nil {
		b.release()
		return err
	}
	b.record(err)
	return err
}

// release frees a half-open trial slot without recording an outcome.
func (b *CircuitBreaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.trialing = false
	}
}

func (b *CircuitBreaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.trialing = true
		return nil
	case StateHalfOpen:
		if b.trialing {
			return ErrCircuitOpen
		}
		b.trialing = true
		return nil
	default:
		return nil
	}
}

func (b *CircuitBreaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trialing = false
		if err != nil {
			b.trip()
			return
		}
		b.state = StateClosed
		b.failures = 0
		return
	}

	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.trip()
	}
}

// trip must be called with mu held.
func (b *CircuitBreaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
}

// State returns the current state without transitioning.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot for health endpoints.
func (b *CircuitBreaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Stats{
		State:     b.state,
		Failures:  b.failures,
		Threshold: b.threshold,
		Timeout:   b.timeout.String(),
	}
	if b.state != StateClosed {
		t := b.openedAt
		s.OpenedAt = &t
	}
	return s
}

// Reset forces the breaker closed.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.trialing = false
	b.openedAt = time.Time{}
}
