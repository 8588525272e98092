// Package listener polls contract events from the chain and feeds them into
// the event queue.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/bidwatch/internal/core/breaker"
	"github.com/vietddude/bidwatch/internal/core/cursor"
	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/indexing/metrics"
	"github.com/vietddude/bidwatch/internal/indexing/queue"
	"github.com/vietddude/bidwatch/internal/infra/soroban"
	"github.com/vietddude/bidwatch/internal/infra/storage"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultBatchSize    = 100
	DefaultOpenPause    = 10 * time.Second
)

// EventSource is the chain side of a poller.
type EventSource interface {
	GetLatestLedger(ctx context.Context) (uint64, error)
	GetEvents(ctx context.Context, q soroban.EventQuery) ([]domain.RawEvent, error)
}

// Config holds poller settings.
type Config struct {
	Kind            domain.ListenerKind
	ContractAddress string
	Events          []string // overrides the parser's event filter when set
	PollInterval    time.Duration
	BatchSize       uint64
	StartBlock      uint64
	OpenPause       time.Duration
	Breaker         breaker.Config
}

// Health is the listener status reported on /listeners/health.
type Health struct {
	Kind               domain.ListenerKind `json:"kind"`
	ContractAddress    string              `json:"contractAddress"`
	IsListening        bool                `json:"isListening"`
	LastProcessedBlock uint64              `json:"lastProcessedBlock"`
	State              cursor.State        `json:"state"`
	BlocksPerSecond    float64             `json:"blocksPerSecond"`
	CircuitBreaker     breaker.Stats       `json:"circuitBreaker"`
}

// Poller periodically fetches a contract's events in ledger batches, parses
// them and enqueues them by priority. Ticks never overlap.
type Poller struct {
	cfg     Config
	events  []string
	parser  Parser
	source  EventSource
	queue   queue.Queue
	breaker *breaker.CircuitBreaker
	cursor  *cursor.Tracker
	saved   storage.CheckpointRepository
	log     *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithCheckpoints persists the checkpoint after every advance and resumes
// from the stored one on Start.
func WithCheckpoints(repo storage.CheckpointRepository) Option {
	return func(p *Poller) {
		p.saved = repo
	}
}

// NewPoller creates a stopped poller positioned at cfg.StartBlock.
func NewPoller(cfg Config, parser Parser, source EventSource, q queue.Queue, opts ...Option) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.OpenPause <= 0 {
		cfg.OpenPause = DefaultOpenPause
	}
	if cfg.Kind == "" {
		cfg.Kind = parser.Kind
	}
	events := cfg.Events
	if len(events) == 0 {
		events = parser.Events
	}

	p := &Poller{
		cfg:     cfg,
		events:  events,
		parser:  parser,
		source:  source,
		queue:   q,
		breaker: breaker.New(cfg.Breaker),
		cursor:  cursor.NewTracker(string(cfg.Kind), cfg.StartBlock),
		log:     slog.Default().With("listener", string(cfg.Kind)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Kind returns the listener kind.
func (p *Poller) Kind() domain.ListenerKind {
	return p.cfg.Kind
}

// Start begins polling. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop != nil {
		p.log.Warn("Listener already running")
		return nil
	}
	p.resume(ctx)
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(ctx, p.stop, p.done)

	if err := p.cursor.SetState(cursor.StateListening, "started"); err != nil {
		p.log.Debug("State change rejected", "error", err)
	}
	p.log.Info("Listener started",
		"contract", p.cfg.ContractAddress,
		"from", p.cursor.Block(),
		"interval", p.cfg.PollInterval,
	)
	return nil
}

// resume moves the cursor to the stored checkpoint when it is ahead.
func (p *Poller) resume(ctx context.Context) {
	if p.saved == nil {
		return
	}
	ledger, ok, err := p.saved.Get(ctx, p.cfg.Kind)
	if err != nil {
		p.log.Warn("Failed to load checkpoint, starting from current cursor", "error", err)
		return
	}
	if !ok || ledger <= p.cursor.Block() {
		return
	}
	if err := p.cursor.Advance(ledger); err != nil {
		p.log.Warn("Failed to resume from checkpoint", "ledger", ledger, "error", err)
		return
	}
	p.log.Info("Resuming from stored checkpoint", "ledger", ledger)
}

// Stop cancels scheduling and waits for an in-flight tick to settle.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := p.cursor.SetState(cursor.StateStopped, "stopped"); err != nil {
		p.log.Debug("State change rejected", "error", err)
	}
	p.log.Info("Listener stopped", "checkpoint", p.cursor.Block())
	return nil
}

// Restart stops and starts the poller, keeping its checkpoint.
func (p *Poller) Restart(ctx context.Context) error {
	if err := p.Stop(ctx); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return p.Start(context.WithoutCancel(ctx))
}

// IsListening reports whether ticks are scheduled.
func (p *Poller) IsListening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

// Checkpoint returns the last fully dispatched ledger.
func (p *Poller) Checkpoint() uint64 {
	return p.cursor.Block()
}

// Health returns the listener status.
func (p *Poller) Health() Health {
	c := p.cursor.Get()
	return Health{
		Kind:               p.cfg.Kind,
		ContractAddress:    p.cfg.ContractAddress,
		IsListening:        p.IsListening(),
		LastProcessedBlock: c.Block,
		State:              c.State,
		BlocksPerSecond:    p.cursor.GetMetrics().BlocksPerSecond,
		CircuitBreaker:     p.breaker.Stats(),
	}
}

func (p *Poller) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(p.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-timer.C:
		}

		delay := p.cfg.PollInterval
		if err := p.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			if p.breaker.State() == breaker.StateOpen {
				p.log.Warn("Circuit breaker is open, pausing polling", "pause", p.cfg.OpenPause)
				_ = p.cursor.SetState(cursor.StatePaused, err.Error())
				delay = p.cfg.OpenPause
			}
		} else if p.cursor.Get().State == cursor.StatePaused {
			_ = p.cursor.SetState(cursor.StateListening, "circuit closed")
		}

		if p.breaker.State() == breaker.StateClosed {
			metrics.BreakerOpen.WithLabelValues(string(p.cfg.Kind)).Set(0)
		} else {
			metrics.BreakerOpen.WithLabelValues(string(p.cfg.Kind)).Set(1)
		}
		timer.Reset(delay)
	}
}

// Tick runs one poll cycle through the circuit breaker.
func (p *Poller) Tick(ctx context.Context) error {
	err := p.breaker.Execute(ctx, p.poll)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, breaker.ErrCircuitOpen):
		p.log.Debug("Tick skipped, circuit open")
	default:
		p.log.Error("Event polling failed", "checkpoint", p.cursor.Block(), "error", err)
	}
	return err
}

func (p *Poller) poll(ctx context.Context) error {
	head, err := p.source.GetLatestLedger(ctx)
	if err != nil {
		return fmt.Errorf("get latest ledger: %w", err)
	}
	metrics.ChainLatestLedger.WithLabelValues(string(p.cfg.Kind)).Set(float64(head))

	from := p.cursor.Block()
	to := min(head, from+p.cfg.BatchSize)
	if to <= from {
		return nil
	}

	raws, err := p.source.GetEvents(ctx, soroban.EventQuery{
		FromLedger:  from + 1,
		ToLedger:    to,
		ContractIDs: []string{p.cfg.ContractAddress},
		EventNames:  p.events,
	})
	if err != nil {
		return fmt.Errorf("get events [%d, %d]: %w", from+1, to, err)
	}
	metrics.EventsFetched.WithLabelValues(string(p.cfg.Kind)).Add(float64(len(raws)))

	if len(raws) > 0 {
		p.log.Info("Processing events", "count", len(raws), "from", from+1, "to", to)
	}
	for _, raw := range raws {
		ev, err := p.parser.Parse(raw)
		if err != nil {
			p.log.Warn("Dropping unparseable event", "id", raw.ID, "ledger", raw.Ledger, "error", err)
			metrics.EventsDropped.WithLabelValues(string(p.cfg.Kind)).Inc()
			continue
		}
		if err := p.queue.Push(ctx, ev); err != nil {
			return fmt.Errorf("enqueue %s %s: %w", ev.Name, ev.ID, err)
		}
	}

	if err := p.cursor.Advance(to); err != nil {
		return err
	}
	metrics.ListenerCheckpoint.WithLabelValues(string(p.cfg.Kind)).Set(float64(to))

	if p.saved != nil {
		if err := p.saved.Save(ctx, p.cfg.Kind, to); err != nil {
			p.log.Warn("Failed to persist checkpoint", "ledger", to, "error", err)
		}
	}
	return nil
}
