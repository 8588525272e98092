// Package cursor tracks the checkpoint of each chain event listener.
//
// The checkpoint is the last ledger whose events have been fully handed to
// the event queue. It lives in process memory only and is rebuilt from the
// configured start ledger on restart.
//
// # Key Features
//
// Forward Only - Advance never moves the checkpoint backwards. Re-advancing
// to the current ledger is a no-op; a lower ledger returns ErrRegression.
//
// State Machine - Only allows valid transitions:
//
//	INIT → LISTENING → PAUSED → LISTENING (valid)
//	STOPPED → PAUSED (invalid - a stopped listener cannot be paused)
//
// # Quick Start
//
//	t := cursor.NewTracker("auction", 1000)
//	t.SetState(cursor.StateListening, "listener started")
//	t.Advance(1100) // ✓ OK
//	t.Advance(1050) // ✗ ErrRegression
package cursor

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrRegression is returned when Advance would move the checkpoint back.
	ErrRegression = errors.New("checkpoint regression")

	// ErrInvalidTransition is returned when an invalid state transition is attempted.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Cursor is a snapshot of a listener checkpoint.
type Cursor struct {
	Listener  string    `json:"listener"`
	Block     uint64    `json:"block"`
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Tracker owns the checkpoint of one listener.
type Tracker struct {
	mu            sync.RWMutex
	cursor        Cursor
	collector     *MetricsCollector
	stateCallback func(listener string, t Transition)
	now           func() time.Time
}

// NewTracker creates a tracker positioned at start.
func NewTracker(listener string, start uint64) *Tracker {
	return &Tracker{
		cursor: Cursor{
			Listener:  listener,
			Block:     start,
			State:     StateInit,
			UpdatedAt: time.Now(),
		},
		collector: NewMetricsCollector(100),
		now:       time.Now,
	}
}

// Get returns a snapshot of the checkpoint.
func (t *Tracker) Get() Cursor {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cursor
}

// Block returns the last fully dispatched ledger.
func (t *Tracker) Block() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cursor.Block
}

// Advance moves the checkpoint forward to block.
func (t *Tracker) Advance(block uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if block == t.cursor.Block {
		return nil
	}
	if block < t.cursor.Block {
		return fmt.Errorf("%w: at %d, got %d", ErrRegression, t.cursor.Block, block)
	}

	now := t.now()
	t.cursor.Block = block
	t.cursor.UpdatedAt = now
	t.collector.RecordBlock(block, now)
	return nil
}

// SetState transitions the listener to a new state. Setting the current
// state again is a no-op.
func (t *Tracker) SetState(to State, reason string) error {
	t.mu.Lock()
	from := t.cursor.State
	if from == to {
		t.mu.Unlock()
		return nil
	}
	if !CanTransition(from, to) {
		t.mu.Unlock()
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, from, to)
	}

	tr := NewTransition(from, to, reason)
	t.cursor.State = to
	t.cursor.UpdatedAt = tr.Timestamp
	t.collector.RecordTransition(tr)
	cb := t.stateCallback
	listener := t.cursor.Listener
	t.mu.Unlock()

	if cb != nil {
		cb(listener, tr)
	}
	return nil
}

// GetLag returns how many ledgers the checkpoint trails latest by.
func (t *Tracker) GetLag(latest uint64) int64 {
	return int64(latest) - int64(t.Block())
}

// GetMetrics returns throughput and recent transitions.
func (t *Tracker) GetMetrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.collector.GetMetrics()
}

// SetStateChangeCallback registers a callback for state changes.
func (t *Tracker) SetStateChangeCallback(fn func(listener string, t Transition)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateCallback = fn
}
