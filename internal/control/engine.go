// Package control assembles the engine from configuration and owns its
// lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/bidwatch/internal/api"
	"github.com/vietddude/bidwatch/internal/auth"
	"github.com/vietddude/bidwatch/internal/bidding"
	"github.com/vietddude/bidwatch/internal/core/breaker"
	"github.com/vietddude/bidwatch/internal/core/config"
	"github.com/vietddude/bidwatch/internal/indexing/dispatcher"
	"github.com/vietddude/bidwatch/internal/indexing/health"
	"github.com/vietddude/bidwatch/internal/indexing/listener"
	"github.com/vietddude/bidwatch/internal/indexing/queue"
	"github.com/vietddude/bidwatch/internal/infra/cache"
	redisclient "github.com/vietddude/bidwatch/internal/infra/redis"
	"github.com/vietddude/bidwatch/internal/infra/rpc/provider"
	"github.com/vietddude/bidwatch/internal/infra/rpc/routing"
	"github.com/vietddude/bidwatch/internal/infra/soroban"
	"github.com/vietddude/bidwatch/internal/infra/storage"
	"github.com/vietddude/bidwatch/internal/infra/storage/memory"
	"github.com/vietddude/bidwatch/internal/infra/storage/postgres"
	"github.com/vietddude/bidwatch/internal/realtime"
)

// Engine is the main application struct that manages listeners, the event
// dispatcher and the HTTP surface.
type Engine struct {
	cfg         config.AppConfig
	auctions    storage.AuctionRepository
	bids        storage.BidRepository
	gateway     *soroban.Gateway
	listeners   *listener.Registry
	dispatcher  *dispatcher.Dispatcher
	service     *bidding.Service
	hub         *realtime.Hub
	healthMon   *health.Monitor
	server      *api.Server
	db          *postgres.DB
	redisClient *redisclient.Client
	providers   []provider.RPCProvider
	cancel      context.CancelFunc
	done        chan struct{}
	log         *slog.Logger
}

// NewEngine creates a new Engine with all dependencies initialized.
func NewEngine(ctx context.Context, cfg config.AppConfig) (*Engine, error) {
	e := &Engine{cfg: cfg, log: slog.Default().With("component", "engine")}
	if err := e.init(ctx); err != nil {
		e.closeBackends()
		return nil, err
	}
	return e, nil
}

func (e *Engine) init(ctx context.Context) error {
	cfg := e.cfg

	// 1. Storage
	var checkpoints storage.CheckpointRepository
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		e.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			return fmt.Errorf("failed to migrate db: %w", err)
		}
		e.auctions = postgres.NewAuctionRepo(db)
		e.bids = postgres.NewBidRepo(db)
		checkpoints = postgres.NewCheckpointRepo(db)
		e.log.Info("Using PostgreSQL storage")
	default:
		store := memory.NewMemoryStorage()
		e.auctions = memory.NewAuctionRepo(store)
		e.bids = memory.NewBidRepo(store)
		checkpoints = memory.NewCheckpointRepo(store)
		e.log.Info("Using Memory storage")
	}

	// 2. Redis-backed cache, queue and rate limiter
	if cfg.Storage.Cache == "redis" || cfg.Storage.Queue == "redis" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to init redis: %w", err)
		}
		e.redisClient = client
		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}
	}

	var store cache.Store = cache.NewMemoryStore()
	var limiter bidding.RateLimiter = bidding.NewMemoryRateLimiter(cfg.Bidding.RateLimit, cfg.Bidding.RateLimitWindow)
	if cfg.Storage.Cache == "redis" {
		store = redisclient.NewCacheStore(e.redisClient)
		limiter = redisclient.NewRateLimiter(e.redisClient, cfg.Bidding.RateLimit, cfg.Bidding.RateLimitWindow)
	}

	var events queue.Queue = queue.NewMemoryQueue()
	if cfg.Storage.Queue == "redis" {
		events = redisclient.NewEventQueue(e.redisClient)
	}

	// 3. Chain RPC
	for _, p := range cfg.Soroban.Providers {
		e.providers = append(e.providers, provider.NewHTTPProvider(p.Name, p.URL, p.Timeout))
	}
	retry := routing.DefaultRetryConfig
	if cfg.Soroban.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Soroban.MaxAttempts
	}
	gateway, err := soroban.NewGateway(soroban.Config{
		AuctionContractID: cfg.Soroban.AuctionContractID,
		TxPollInterval:    cfg.Soroban.TxPollInterval,
		TxTimeout:         cfg.Soroban.TxTimeout,
		EventsPageLimit:   cfg.Soroban.EventsPageLimit,
		Retry:             retry,
	}, e.providers...)
	if err != nil {
		return fmt.Errorf("failed to init soroban gateway: %w", err)
	}
	e.gateway = gateway

	// 4. Bidding
	sessions := auth.SessionVerifier{Secret: []byte(cfg.Auth.JWTSecret), TokenTTL: cfg.Auth.TokenTTL}
	e.hub = realtime.NewHub(sessions, cfg.Server.SendBuffer)

	resolver := bidding.NewResolver(store, gateway, e.bids, cfg.Bidding.HighestBidTTL)
	e.service = bidding.NewService(bidding.Deps{
		Auctions:    e.auctions,
		Bids:        e.bids,
		Resolver:    resolver,
		Settlement:  gateway,
		Limiter:     limiter,
		Broadcaster: e.hub,
	})

	// 5. Listeners and dispatcher
	var pollers []*listener.Poller
	for _, lc := range cfg.Listeners {
		if lc.Disabled {
			e.log.Info("Listener disabled", "kind", lc.Kind)
			continue
		}
		parser, err := listener.ParserFor(lc.Kind)
		if err != nil {
			return err
		}
		pollers = append(pollers, listener.NewPoller(listener.Config{
			Kind:            lc.Kind,
			ContractAddress: lc.ContractAddress,
			Events:          lc.Events,
			PollInterval:    lc.PollInterval,
			BatchSize:       lc.BatchSize,
			StartBlock:      lc.StartBlock,
			Breaker: breaker.Config{
				Threshold: lc.BreakerThreshold,
				Timeout:   lc.BreakerTimeout,
			},
		}, parser, gateway, events, listener.WithCheckpoints(checkpoints)))
	}
	e.listeners = listener.NewRegistry(pollers...)

	e.dispatcher = dispatcher.New(dispatcher.Config{
		Workers:    cfg.Dispatch.Workers,
		BatchSize:  cfg.Dispatch.BatchSize,
		EmptySleep: cfg.Dispatch.EmptySleep,
	}, events,
		bidding.NewIndexer(e.bids, resolver, e.hub),
		bidding.NewLifecycle(e.auctions, resolver, e.hub),
	)

	// 6. Health and HTTP
	e.healthMon = health.NewMonitor(e.listeners, gateway, events)

	deps := api.Deps{
		Bids:      e.service,
		Listeners: e.listeners,
		Monitor:   e.healthMon,
		Realtime:  e.hub,
	}
	if cfg.Auth.RequireSessions {
		deps.Sessions = sessions
	}
	e.server = api.NewServer(deps, cfg.Server.Port)
	return nil
}

// Start starts the engine and all its components.
func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	// Start HTTP Server
	go func() {
		if err := e.server.Start(); err != nil {
			e.log.Error("HTTP server failed", "error", err)
		}
	}()

	// Start DB Metrics Collector
	if e.db != nil {
		e.db.StartMetricsCollector(runCtx)
	}

	go func() {
		defer close(e.done)
		if err := e.dispatcher.Run(runCtx); err != nil {
			e.log.Error("Dispatcher failed", "error", err)
		}
	}()

	if err := e.listeners.Start(runCtx); err != nil {
		cancel()
		return err
	}
	e.log.Info("Engine started", "listeners", len(e.listeners.Health()), "port", e.cfg.Server.Port)
	return nil
}

// Stop stops listeners first, then the dispatcher, then the HTTP surface.
func (e *Engine) Stop(ctx context.Context) error {
	e.log.Info("Stopping engine...")

	var errs []error
	if err := e.listeners.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	if e.cancel != nil {
		e.cancel()
		select {
		case <-e.done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("dispatcher: %w", ctx.Err()))
		}
	}

	e.hub.Close()
	if err := e.server.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}

	e.closeBackends()
	return errors.Join(errs...)
}

func (e *Engine) closeBackends() {
	for _, p := range e.providers {
		_ = p.Close()
	}
	if e.redisClient != nil {
		if err := e.redisClient.Close(); err != nil {
			e.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.log.Warn("Failed to close database", "error", err)
		}
	}
}
