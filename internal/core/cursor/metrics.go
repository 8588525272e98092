package cursor

import (
	"time"
)

// blockRecord holds timing data for a checkpoint advance.
type blockRecord struct {
	BlockNumber uint64
	ProcessedAt time.Time
}

// Metrics holds checkpoint throughput data.
type Metrics struct {
	BlocksPerSecond float64       `json:"blocksPerSecond"`
	AverageAdvance  time.Duration `json:"averageAdvance"`
	LastPausedAt    *time.Time    `json:"lastPausedAt,omitempty"`
	StateHistory    []Transition  `json:"stateHistory"`
}

// MetricsCollector tracks checkpoint advances over time.
type MetricsCollector struct {
	windowSize   int           // number of advances to track
	blockTimes   []blockRecord // ring buffer of advance records
	transitions  []Transition  // recent state changes
	lastPausedAt *time.Time
}

// NewMetricsCollector creates a collector with the given window size.
func NewMetricsCollector(windowSize int) *MetricsCollector {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &MetricsCollector{
		windowSize:  windowSize,
		blockTimes:  make([]blockRecord, 0, windowSize),
		transitions: make([]Transition, 0, 10),
	}
}

// RecordBlock records timing for a checkpoint advance.
func (mc *MetricsCollector) RecordBlock(blockNumber uint64, processedAt time.Time) {
	record := blockRecord{
		BlockNumber: blockNumber,
		ProcessedAt: processedAt,
	}

	if len(mc.blockTimes) >= mc.windowSize {
		// Shift elements left, drop oldest
		copy(mc.blockTimes, mc.blockTimes[1:])
		mc.blockTimes[len(mc.blockTimes)-1] = record
	} else {
		mc.blockTimes = append(mc.blockTimes, record)
	}
}

// RecordTransition records a state transition.
func (mc *MetricsCollector) RecordTransition(t Transition) {
	// Keep only last 10 transitions
	if len(mc.transitions) >= 10 {
		copy(mc.transitions, mc.transitions[1:])
		mc.transitions[len(mc.transitions)-1] = t
	} else {
		mc.transitions = append(mc.transitions, t)
	}

	if t.To == StatePaused {
		at := t.Timestamp
		mc.lastPausedAt = &at
	}
}

// GetMetrics returns current metrics.
func (mc *MetricsCollector) GetMetrics() Metrics {
	m := Metrics{
		LastPausedAt: mc.lastPausedAt,
		StateHistory: make([]Transition, len(mc.transitions)),
	}
	copy(m.StateHistory, mc.transitions)

	// Ledger throughput over the window
	if len(mc.blockTimes) >= 2 {
		first := mc.blockTimes[0]
		last := mc.blockTimes[len(mc.blockTimes)-1]
		duration := last.ProcessedAt.Sub(first.ProcessedAt)

		if duration > 0 {
			ledgers := float64(last.BlockNumber - first.BlockNumber)
			advances := float64(len(mc.blockTimes) - 1)
			m.BlocksPerSecond = ledgers / duration.Seconds()
			m.AverageAdvance = time.Duration(float64(duration) / advances)
		}
	}

	return m
}

// Reset clears all collected metrics.
func (mc *MetricsCollector) Reset() {
	mc.blockTimes = mc.blockTimes[:0]
	mc.transitions = mc.transitions[:0]
	mc.lastPausedAt = nil
}
