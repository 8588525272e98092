// Package health provides listener health monitoring and status reporting.
package health

import (
	"github.com/vietddude/bidwatch/internal/core/breaker"
	"github.com/vietddude/bidwatch/internal/core/domain"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ListenerHealth contains health metrics for one chain event listener.
type ListenerHealth struct {
	Kind               domain.ListenerKind `json:"kind"`
	Status             SystemStatus        `json:"status"`
	IsListening        bool                `json:"is_listening"`
	LastProcessedBlock uint64              `json:"last_processed_block"`
	BlockLag           uint64              `json:"block_lag"`
	BreakerState       breaker.State       `json:"breaker_state"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus                           `json:"system_status"`
	LatestLedger uint64                                 `json:"latest_ledger"`
	QueueDepth   int                                    `json:"queue_depth"`
	Listeners    map[domain.ListenerKind]ListenerHealth `json:"listeners"`
}
