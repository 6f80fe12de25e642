package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
)

func validConfig() Config {
	return Config{
		Addr:        "0.0.0.0:8080",
		Storage:     StoragePostgres,
		DatabaseURL: "postgres://localhost/shop",
		Currency:    "usd",
		RateLimit:   RateLimitConfig{Max: 10, Window: time.Minute},
		Session:     SessionConfig{TTL: time.Hour, CleanupInterval: time.Minute},
		Health:      HealthConfig{Interval: 10 * time.Second},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.DatabaseURL = "" },
			wantErr: "database URL is required",
		},
		{
			name:   "memory without url",
			mutate: func(c *Config) { c.Storage, c.DatabaseURL = StorageMemory, "" },
		},
		{
			name:    "unknown storage",
			mutate:  func(c *Config) { c.Storage = "redis" },
			wantErr: `unknown storage "redis"`,
		},
		{
			name:    "bad currency",
			mutate:  func(c *Config) { c.Currency = "XXQ" },
			wantErr: "parse currency",
		},
		{
			name:    "zero rate limit",
			mutate:  func(c *Config) { c.RateLimit.Max = 0 },
			wantErr: "rate limit",
		},
		{
			name:    "zero rate limit window",
			mutate:  func(c *Config) { c.RateLimit.Window = 0 },
			wantErr: "rate limit",
		},
		{
			name:    "zero session cleanup interval",
			mutate:  func(c *Config) { c.Session.CleanupInterval = 0 },
			wantErr: "session cleanup interval must be positive",
		},
		{
			name:    "negative session cleanup interval",
			mutate:  func(c *Config) { c.Session.CleanupInterval = -time.Second },
			wantErr: "session cleanup interval must be positive",
		},
		{
			name:    "zero health interval",
			mutate:  func(c *Config) { c.Health.Interval = 0 },
			wantErr: "health interval must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_CurrencyUnit(t *testing.T) {
	cfg := validConfig()
	cfg.Currency = "eur"

	u, err := cfg.CurrencyUnit()
	require.NoError(t, err)
	assert.Equal(t, currency.EUR, u)
}

func TestConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9000")

	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)

	// Explicit settings win.
	cfg = validConfig()
	cfg.Addr = "127.0.0.1:7000"
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://localhost/shop", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestOpenMemory(t *testing.T) {
	cfg := validConfig()
	cfg.Storage = StorageMemory
	cfg.APIKeyPepper = "pepper"
	cfg.DevAPIKey = "dev-key"

	store, err := openMemory(zap.NewNop(), &cfg)
	require.NoError(t, err)
	defer store.close()

	assert.Nil(t, store.ping)
	stores, err := store.products.ListStores(t.Context())
	require.NoError(t, err)
	assert.NotEmpty(t, stores)

	promo, err := store.promotions.FindActiveByCode(t.Context(), "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", promo.Code)
}
