package cursor

import (
	"errors"
	"testing"
	"time"
)

func TestTracker_AdvanceForwardOnly(t *testing.T) {
	tr := NewTracker("auction", 100)

	if err := tr.Advance(150); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tr.Block(); got != 150 {
		t.Errorf("expected 150, got %d", got)
	}

	// Same ledger is idempotent
	if err := tr.Advance(150); err != nil {
		t.Errorf("expected no error on repeat advance, got %v", err)
	}

	err := tr.Advance(120)
	if !errors.Is(err, ErrRegression) {
		t.Errorf("expected ErrRegression, got %v", err)
	}
	if got := tr.Block(); got != 150 {
		t.Errorf("expected checkpoint to stay at 150, got %d", got)
	}
}

func TestTracker_StateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []State
		wantErr bool
	}{
		{"start listening", []State{StateListening}, false},
		{"pause and resume", []State{StateListening, StatePaused, StateListening}, false},
		{"restart after stop", []State{StateListening, StateStopped, StateListening}, false},
		{"pause from init", []State{StatePaused}, true},
		{"pause after stop", []State{StateListening, StateStopped, StatePaused}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker("marketplace", 0)
			var err error
			for _, s := range tt.path {
				if err = tr.SetState(s, "test"); err != nil {
					break
				}
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestTracker_StateCallback(t *testing.T) {
	tr := NewTracker("transaction", 0)

	var got []Transition
	tr.SetStateChangeCallback(func(listener string, tn Transition) {
		if listener != "transaction" {
			t.Errorf("expected listener transaction, got %s", listener)
		}
		got = append(got, tn)
	})

	_ = tr.SetState(StateListening, "started")
	_ = tr.SetState(StateListening, "again")
	_ = tr.SetState(StatePaused, "breaker open")

	if len(got) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(got))
	}
	if got[1].From != StateListening || got[1].To != StatePaused {
		t.Errorf("unexpected transition %+v", got[1])
	}

	m := tr.GetMetrics()
	if m.LastPausedAt == nil {
		t.Error("expected LastPausedAt to be set")
	}
	if len(m.StateHistory) != 2 {
		t.Errorf("expected 2 history entries, got %d", len(m.StateHistory))
	}
}

func TestTracker_Metrics(t *testing.T) {
	tr := NewTracker("auction", 0)
	now := time.Unix(1_700_000_000, 0)
	tr.now = func() time.Time { return now }

	_ = tr.Advance(100)
	now = now.Add(10 * time.Second)
	_ = tr.Advance(200)

	m := tr.GetMetrics()
	if m.BlocksPerSecond != 10 {
		t.Errorf("expected 10 ledgers/s, got %f", m.BlocksPerSecond)
	}
	if m.AverageAdvance != 10*time.Second {
		t.Errorf("expected 10s average advance, got %s", m.AverageAdvance)
	}
	if lag := tr.GetLag(250); lag != 50 {
		t.Errorf("expected lag 50, got %d", lag)
	}
}

func TestStateDescription(t *testing.T) {
	if StateDescription(StatePaused) == "Unknown state" {
		t.Error("expected description for paused")
	}
	if StateDescription(State("BOGUS")) != "Unknown state" {
		t.Error("expected unknown description")
	}
}
