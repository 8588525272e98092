// Package dispatcher drains the chain event queue and routes events to
// their handlers.
package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/indexing/metrics"
	"github.com/vietddude/bidwatch/internal/indexing/queue"
)

// BidIndexer records bid events.
type BidIndexer interface {
	HandleBidPlaced(ctx context.Context, ev *domain.ChainEvent) error
}

// AuctionLifecycle applies auction lifecycle events.
type AuctionLifecycle interface {
	HandleAuctionCreated(ctx context.Context, ev *domain.ChainEvent) error
	HandleAuctionClosed(ctx context.Context, ev *domain.ChainEvent, status domain.AuctionStatus) error
}

// Config holds dispatcher settings.
type Config struct {
	Workers    int           // concurrent handlers (default: 4)
	BatchSize  int           // events popped per round (default: 50)
	EmptySleep time.Duration // sleep when queue empty (default: 500ms)
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:    4,
		BatchSize:  50,
		EmptySleep: 500 * time.Millisecond,
	}
}

// Dispatcher pops events by priority and hands them to a bounded pool of
// handlers. A failing handler only loses its own event.
type Dispatcher struct {
	cfg      Config
	queue    queue.Queue
	bids     BidIndexer
	auctions AuctionLifecycle
	log      *slog.Logger
}

// New creates a dispatcher.
func New(cfg Config, q queue.Queue, bids BidIndexer, auctions AuctionLifecycle) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.EmptySleep <= 0 {
		cfg.EmptySleep = def.EmptySleep
	}
	return &Dispatcher{
		cfg:      cfg,
		queue:    q,
		bids:     bids,
		auctions: auctions,
		log:      slog.Default().With("component", "dispatcher"),
	}
}

// Run drains the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("Starting event dispatcher", "workers", d.cfg.Workers)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("Event dispatcher stopped")
			return nil
		default:
		}

		n, err := d.Drain(ctx)
		if err != nil {
			d.log.Error("Failed to pop events", "error", err)
		}
		if n == 0 || err != nil {
			select {
			case <-ctx.Done():
			case <-time.After(d.cfg.EmptySleep):
			}
		}
	}
}

// Drain pops one batch and dispatches it, returning the batch size. Events
// returned alongside a pop error are still dispatched.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	events, popErr := d.queue.Pop(ctx, d.cfg.BatchSize)
	if depth, err := d.queue.Len(ctx); err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}
	if len(events) == 0 {
		return 0, popErr
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for _, ev := range events {
		g.Go(func() error {
			d.Dispatch(gctx, ev)
			return nil
		})
	}
	_ = g.Wait()
	return len(events), popErr
}

// Dispatch routes one event. Handler errors are logged and the event is
// dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *domain.ChainEvent) {
	var err error
	result := "handled"

	switch ev.Name {
	case domain.EventBidPlaced:
		err = d.bids.HandleBidPlaced(ctx, ev)
	case domain.EventAuctionCreated:
		err = d.auctions.HandleAuctionCreated(ctx, ev)
	case domain.EventAuctionEnded:
		err = d.auctions.HandleAuctionClosed(ctx, ev, domain.AuctionStatusEnded)
	case domain.EventAuctionCancelled:
		err = d.auctions.HandleAuctionClosed(ctx, ev, domain.AuctionStatusCancelled)
	default:
		result = "ignored"
		d.log.Debug("No handler for event",
			"event", ev.Name,
			"kind", ev.Kind,
			"ledger", ev.BlockNumber,
			"tx", ev.TransactionHash,
		)
	}

	if err != nil {
		result = "failed"
		d.log.Error("Event handler failed",
			"event", ev.Name,
			"id", ev.ID,
			"ledger", ev.BlockNumber,
			"error", err,
		)
	}
	metrics.EventsDispatched.WithLabelValues(ev.Name, result).Inc()
}
