package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsFetched tracks raw contract events returned by the RPC per listener
	EventsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidwatch_events_fetched_total",
			Help: "Total number of raw contract events fetched",
		},
		[]string{"listener"},
	)

	// EventsDropped tracks events the parser rejected
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidwatch_events_dropped_total",
			Help: "Total number of contract events dropped as unparseable",
		},
		[]string{"listener"},
	)

	// EventsDispatched tracks events handled by the dispatcher
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidwatch_events_dispatched_total",
			Help: "Total number of chain events dispatched",
		},
		[]string{"event", "result"},
	)

	// ListenerCheckpoint tracks the last processed ledger per listener
	ListenerCheckpoint = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bidwatch_listener_checkpoint",
			Help: "Last ledger fully dispatched by the listener",
		},
		[]string{"listener"},
	)

	// ChainLatestLedger tracks the chain head seen by each listener
	ChainLatestLedger = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bidwatch_chain_latest_ledger",
			Help: "Latest ledger sequence reported by the RPC",
		},
		[]string{"listener"},
	)

	// BreakerOpen is 1 while a listener's circuit breaker is not closed
	BreakerOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bidwatch_circuit_breaker_open",
			Help: "Whether the listener circuit breaker is open (1) or closed (0)",
		},
		[]string{"listener"},
	)

	// RPCCallsTotal tracks RPC calls per method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidwatch_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per method
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidwatch_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"provider", "method"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bidwatch_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "method"},
	)

	// BidsAccepted tracks bids accepted through the API
	BidsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bidwatch_bids_accepted_total",
			Help: "Total number of bids accepted and settled",
		},
	)

	// BidsRejected tracks rejected bids by error code
	BidsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidwatch_bids_rejected_total",
			Help: "Total number of bids rejected",
		},
		[]string{"code"},
	)

	// BidsIndexed tracks bids inserted from chain events
	BidsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidwatch_bids_indexed_total",
			Help: "Total number of chain bid events indexed",
		},
		[]string{"result"},
	)

	// HighestBidLookups tracks which tier answered a highest-bid lookup
	HighestBidLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidwatch_highest_bid_lookups_total",
			Help: "Highest bid lookups by resolving tier",
		},
		[]string{"tier"},
	)

	// QueueDepth tracks the number of events waiting in the priority queue
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bidwatch_event_queue_depth",
			Help: "Number of chain events waiting to be dispatched",
		},
	)

	// RealtimeClients tracks connected websocket clients
	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bidwatch_realtime_clients",
			Help: "Number of connected websocket clients",
		},
	)

	// DBConnectionPoolUsage tracks the share of open connections in the pool
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bidwatch_db_connection_pool_usage_percent",
			Help: "Open database connections as a percentage of the pool maximum",
		},
	)
)
