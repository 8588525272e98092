package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/bidwatch/internal/core/breaker"
	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/indexing/listener"
)

// LedgerFetcher fetches the latest ledger sequence of the chain.
type LedgerFetcher interface {
	GetLatestLedger(ctx context.Context) (uint64, error)
}

// ListenerSource reports the status of the running listeners.
type ListenerSource interface {
	Health() []listener.Health
}

// QueueLength reports how many events wait for dispatch.
type QueueLength interface {
	Len(ctx context.Context) (int, error)
}

// Monitor aggregates health status from the listeners and the event queue.
type Monitor struct {
	listeners  ListenerSource
	ledger     LedgerFetcher
	queue      QueueLength
	minCheck   time.Duration
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. queue may be nil.
func NewMonitor(listeners ListenerSource, ledger LedgerFetcher, queue QueueLength) *Monitor {
	return &Monitor{
		listeners: listeners,
		ledger:    ledger,
		queue:     queue,
		minCheck:  10 * time.Second,
	}
}

// CheckHealth evaluates every listener. Results are reused for a short
// period to avoid spamming the RPC.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.minCheck {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Listeners:    make(map[domain.ListenerKind]ListenerHealth),
	}

	latest, err := m.ledger.GetLatestLedger(ctx)
	if err != nil {
		report.SystemStatus = StatusDegraded
	} else {
		report.LatestLedger = latest
	}

	if m.queue != nil {
		if n, err := m.queue.Len(ctx); err == nil {
			report.QueueDepth = n
		}
	}

	for _, lh := range m.listeners.Health() {
		h := ListenerHealth{
			Kind:               lh.Kind,
			Status:             StatusHealthy,
			IsListening:        lh.IsListening,
			LastProcessedBlock: lh.LastProcessedBlock,
			BreakerState:       lh.CircuitBreaker.State,
		}
		if latest > lh.LastProcessedBlock {
			h.BlockLag = latest - lh.LastProcessedBlock
		}

		switch {
		case !h.IsListening || h.BlockLag > 100:
			h.Status = StatusCritical
		case h.BreakerState != breaker.StateClosed || h.BlockLag > 10:
			h.Status = StatusDegraded
		}

		report.Listeners[h.Kind] = h
		report.SystemStatus = worst(report.SystemStatus, h.Status)
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}

// Invalidate forces the next CheckHealth to re-evaluate.
func (m *Monitor) Invalidate() {
	m.mu.Lock()
	m.lastReport = nil
	m.mu.Unlock()
}

func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
