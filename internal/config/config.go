package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the sidebar service and its clients.
// Environment variables are parsed from the SIDEBAR_ prefix.
type Config struct {
	// Build target selects the high-level environment: local or cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	DBDriver    string      `envconfig:"DB_DRIVER" default:"auto"`
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	SQLitePath  string `envconfig:"SQLITE_PATH" default:"./data/sidebar.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Bearer token -> user id, e.g. "tok1:alice,tok2:bob"
	APITokens map[string]string `envconfig:"API_TOKENS"`

	// Sidebar cache
	CacheTTL         time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	CacheRetention   time.Duration `envconfig:"CACHE_RETENTION" default:"24h"`
	RedisURL         string        `envconfig:"REDIS_URL" default:""`
	DefaultPageLimit int           `envconfig:"DEFAULT_PAGE_LIMIT" default:"30"`
	MaxPageLimit     int           `envconfig:"MAX_PAGE_LIMIT" default:"100"`

	// Backend client
	BackendURL     string        `envconfig:"BACKEND_URL" default:"http://localhost:8080"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`

	// Health
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver when set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string

	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud":
		defaultDB = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}

	allowedDB := map[string]bool{"sqlite": true, "postgres": true, "memory": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required when DB_DRIVER=postgres")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.CacheRetention < c.CacheTTL {
		c.CacheRetention = c.CacheTTL
	}
	if c.MaxPageLimit <= 0 {
		return fmt.Errorf("MAX_PAGE_LIMIT must be positive")
	}
	if c.DefaultPageLimit <= 0 || c.DefaultPageLimit > c.MaxPageLimit {
		c.DefaultPageLimit = c.MaxPageLimit
	}
	return nil
}

// New creates a new Config by parsing environment variables
// prefixed with SIDEBAR_, e.g. SIDEBAR_HTTP_PORT, SIDEBAR_CACHE_TTL.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("SIDEBAR", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Dur("cache_ttl", cfg.CacheTTL).
		Bool("redis", cfg.RedisURL != "").
		Int("api_tokens", len(cfg.APITokens)).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		BuildTarget:               "local",
		DBDriver:                  "sqlite",
		Environment:               EnvTesting,
		HTTPPort:                  8080,
		SQLitePath:                ":memory:",
		APITokens:                 map[string]string{"test-token": "test-user"},
		CacheTTL:                  5 * time.Minute,
		CacheRetention:            24 * time.Hour,
		DefaultPageLimit:          30,
		MaxPageLimit:              100,
		BackendURL:                "http://localhost:8080",
		BackendTimeout:            10 * time.Second,
		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
