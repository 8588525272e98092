package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/bidwatch/internal/core/domain"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding environment variables and
// filling defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.Cache == "" {
		cfg.Storage.Cache = "memory"
	}
	if cfg.Storage.Queue == "" {
		cfg.Storage.Queue = "memory"
	}

	if cfg.Soroban.TxPollInterval == 0 {
		cfg.Soroban.TxPollInterval = 2 * time.Second
	}
	if cfg.Soroban.TxTimeout == 0 {
		cfg.Soroban.TxTimeout = 60 * time.Second
	}
	for i := range cfg.Soroban.Providers {
		if cfg.Soroban.Providers[i].Timeout == 0 {
			cfg.Soroban.Providers[i].Timeout = 15 * time.Second
		}
		if cfg.Soroban.Providers[i].Name == "" {
			cfg.Soroban.Providers[i].Name = fmt.Sprintf("soroban-%d", i)
		}
	}

	for i := range cfg.Listeners {
		l := &cfg.Listeners[i]
		if l.PollInterval == 0 {
			l.PollInterval = 5 * time.Second
		}
		if l.BatchSize == 0 {
			l.BatchSize = 100
		}
		if l.BreakerThreshold == 0 {
			l.BreakerThreshold = 5
		}
		if l.BreakerTimeout == 0 {
			l.BreakerTimeout = 60 * time.Second
		}
	}

	if cfg.Bidding.HighestBidTTL == 0 {
		cfg.Bidding.HighestBidTTL = 30 * time.Second
	}
	if cfg.Bidding.RateLimit == 0 {
		cfg.Bidding.RateLimit = 5
	}
	if cfg.Bidding.RateLimitWindow == 0 {
		cfg.Bidding.RateLimitWindow = time.Minute
	}

	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
}

// Validate reports configuration that cannot run.
func (c *AppConfig) Validate() error {
	var errs []error

	if len(c.Soroban.Providers) == 0 {
		errs = append(errs, errors.New("soroban: at least one provider is required"))
	}
	for i, p := range c.Soroban.Providers {
		if p.URL == "" {
			errs = append(errs, fmt.Errorf("soroban.providers[%d]: url is required", i))
		}
	}

	seen := make(map[domain.ListenerKind]bool)
	for i, l := range c.Listeners {
		switch l.Kind {
		case domain.ListenerMarketplace, domain.ListenerAuction, domain.ListenerTransaction:
		default:
			errs = append(errs, fmt.Errorf("listeners[%d]: unknown kind %q", i, l.Kind))
		}
		if seen[l.Kind] {
			errs = append(errs, fmt.Errorf("listeners[%d]: duplicate kind %q", i, l.Kind))
		}
		seen[l.Kind] = true
		if l.ContractAddress == "" && !l.Disabled {
			errs = append(errs, fmt.Errorf("listeners[%d]: contract is required", i))
		}
	}

	if c.Storage.Backend == "postgres" && c.Database.URL == "" {
		errs = append(errs, errors.New("database: url is required for the postgres backend"))
	}
	if (c.Storage.Cache == "redis" || c.Storage.Queue == "redis") && c.Redis.URL == "" {
		errs = append(errs, errors.New("redis: url is required for redis cache or queue"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth: jwt_secret is required"))
	}

	return errors.Join(errs...)
}
