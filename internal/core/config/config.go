package config

import (
	"time"

	"github.com/vietddude/bidwatch/internal/core/domain"
	redisclient "github.com/vietddude/bidwatch/internal/infra/redis"
	"github.com/vietddude/bidwatch/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Storage   StorageConfig      `yaml:"storage"`
	Database  postgres.Config    `yaml:"database"`
	Redis     redisclient.Config `yaml:"redis"`
	Soroban   SorobanConfig      `yaml:"soroban"`
	Listeners []ListenerConfig   `yaml:"listeners"`
	Dispatch  DispatchConfig     `yaml:"dispatch"`
	Bidding   BiddingConfig      `yaml:"bidding"`
	Auth      AuthConfig         `yaml:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SendBuffer      int           `yaml:"ws_send_buffer"` // frames queued per websocket client
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// StorageConfig selects the backends. "memory" needs no external service.
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory, postgres
	Cache   string `yaml:"cache"`   // memory, redis
	Queue   string `yaml:"queue"`   // memory, redis
}

// SorobanConfig holds chain RPC settings.
type SorobanConfig struct {
	AuctionContractID string           `yaml:"auction_contract_id"`
	TxPollInterval    time.Duration    `yaml:"tx_poll_interval"`
	TxTimeout         time.Duration    `yaml:"tx_timeout"`
	EventsPageLimit   int              `yaml:"events_page_limit"`
	MaxAttempts       int              `yaml:"max_attempts"`
	Providers         []ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds settings for an RPC provider.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ListenerConfig holds settings for one contract event listener.
type ListenerConfig struct {
	Kind             domain.ListenerKind `yaml:"kind"`
	ContractAddress  string              `yaml:"contract"`
	Events           []string            `yaml:"events"`
	PollInterval     time.Duration       `yaml:"interval"`
	BatchSize        uint64              `yaml:"batch_size"`
	StartBlock       uint64              `yaml:"start_block"`
	BreakerThreshold int                 `yaml:"breaker_threshold"`
	BreakerTimeout   time.Duration       `yaml:"breaker_timeout"`
	Disabled         bool                `yaml:"disabled"`
}

// DispatchConfig holds event dispatcher settings.
type DispatchConfig struct {
	Workers    int           `yaml:"workers"`
	BatchSize  int           `yaml:"batch_size"`
	EmptySleep time.Duration `yaml:"empty_sleep"`
}

// BiddingConfig holds bid acceptance settings.
type BiddingConfig struct {
	HighestBidTTL   time.Duration `yaml:"highest_bid_ttl"`
	RateLimit       int           `yaml:"rate_limit"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
}

// AuthConfig holds session credential settings.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	RequireSessions bool          `yaml:"require_sessions"` // REST bid routes
}
