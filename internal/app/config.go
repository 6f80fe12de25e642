package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"golang.org/x/text/currency"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage      string `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	DBMaxConns   int32  `default:"10" usage:"Maximum PostgreSQL pool connections" flag:"db-max-conns"`
	ImageBaseURL string `default:"" usage:"Base URL for relative product images" flag:"image-base-url"`
	Currency     string `default:"USD" usage:"ISO 4217 currency used in customer messages"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (SHOP_API_KEY_PEPPER)" flag:"api-key-pepper"`
	// DevAPIKey is registered with the memory backend so checkout can be
	// exercised without a database.
	DevAPIKey string `default:"" usage:"API key accepted by the memory backend" flag:"dev-api-key"`
	Session   SessionConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
	Health    HealthConfig
}

// SessionConfig controls cart session lifetime.
type SessionConfig struct {
	TTL             time.Duration `default:"24h" usage:"Idle time after which a cart session is dropped"`
	CleanupInterval time.Duration `default:"5m"  usage:"How often idle sessions are collected" flag:"session-cleanup-interval"`
	MaxSessions     int           `default:"100000" usage:"Open sessions above which readiness fails" flag:"max-sessions"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// HealthConfig controls probe polling.
type HealthConfig struct {
	Interval      time.Duration `default:"10s" usage:"Health check polling interval" flag:"health-interval"`
	MaxGoroutines int           `default:"10000" usage:"Goroutine count above which liveness fails" flag:"max-goroutines"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q", c.Storage)
	}
	if _, err := c.CurrencyUnit(); err != nil {
		return err
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	// Both feed time.NewTicker, which panics on a non-positive duration.
	if c.Session.CleanupInterval <= 0 {
		return errors.Errorf("session cleanup interval must be positive, got %s", c.Session.CleanupInterval)
	}
	if c.Health.Interval <= 0 {
		return errors.Errorf("health interval must be positive, got %s", c.Health.Interval)
	}
	return nil
}

// CurrencyUnit parses Currency.
func (c *Config) CurrencyUnit() (currency.Unit, error) {
	u, err := currency.ParseISO(strings.ToUpper(c.Currency))
	if err != nil {
		return currency.Unit{}, errors.Wrapf(err, "parse currency %q", c.Currency)
	}
	return u, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
