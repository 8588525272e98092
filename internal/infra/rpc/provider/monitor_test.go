package provider

import (
	"testing"
	"time"
)

func TestMonitor_DegradedOnSlowResponses(t *testing.T) {
	m := NewProviderMonitor()

	for i := 0; i < 11; i++ {
		m.RecordRequest(100 * time.Millisecond)
	}
	if got := m.CheckProviderStatus(); got != StatusHealthy {
		t.Errorf("expected healthy, got %s", got)
	}

	for i := 0; i < 100; i++ {
		m.RecordRequest(5 * time.Second)
	}
	if got := m.CheckProviderStatus(); got != StatusDegraded {
		t.Errorf("expected degraded, got %s", got)
	}
}

func TestMonitor_BlockedAfter403(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewProviderMonitor()
	m.now = func() time.Time { return now }

	m.RecordThrottle(403, "")
	if got := m.CheckProviderStatus(); got != StatusBlocked {
		t.Errorf("expected blocked, got %s", got)
	}

	now = now.Add(11 * time.Minute)
	if got := m.CheckProviderStatus(); got != StatusHealthy {
		t.Errorf("expected healthy after backoff, got %s", got)
	}
}

func TestMonitor_ThrottledAfterRepeated429(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewProviderMonitor()
	m.now = func() time.Time { return now }

	for i := 0; i < 6; i++ {
		m.RecordThrottle(429, "10")
	}
	if got := m.CheckProviderStatus(); got != StatusThrottled {
		t.Errorf("expected throttled, got %s", got)
	}
	if got := m.GetRetryAfter(); got != 10*time.Second {
		t.Errorf("expected 10s retry-after, got %s", got)
	}
}

func TestMonitor_DetectThrottlePattern(t *testing.T) {
	m := NewProviderMonitor()
	if !m.DetectThrottlePattern("Rate Limit Exceeded for key") {
		t.Error("expected throttle pattern match")
	}
	if m.DetectThrottlePattern("ledger not found") {
		t.Error("expected no match")
	}
}
