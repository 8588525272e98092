package cursor

import "time"

// State is the lifecycle state of a listener.
type State string

const (
	StateInit      State = "INIT"
	StateListening State = "LISTENING"
	StatePaused    State = "PAUSED"
	StateStopped   State = "STOPPED"
)

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[State][]State{
	StateInit:      {StateListening, StateStopped},
	StateListening: {StatePaused, StateStopped},
	StatePaused:    {StateListening, StateStopped},
	StateStopped:   {StateListening},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	validTargets, ok := ValidTransitions[from]
	if !ok {
		return false
	}

	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransition creates a new transition record.
func NewTransition(from, to State, reason string) Transition {
	return Transition{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s State) string {
	switch s {
	case StateInit:
		return "Initializing - listener created, not yet started"
	case StateListening:
		return "Listening - polling the chain on schedule"
	case StatePaused:
		return "Paused - circuit breaker open, polling backed off"
	case StateStopped:
		return "Stopped - no ticks scheduled"
	default:
		return "Unknown state"
	}
}
