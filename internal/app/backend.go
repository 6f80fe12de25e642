package app

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
	"github.com/xenking/storefront-checkout/internal/handler"
	"github.com/xenking/storefront-checkout/internal/storage/memory"
	"github.com/xenking/storefront-checkout/internal/storage/postgres"
	"github.com/xenking/storefront-checkout/internal/storage/seed"
	"github.com/xenking/storefront-checkout/pkg/health"
)

// backend is the set of repositories the services run on.
type backend struct {
	products   product.Repository
	promotions promotion.Repository
	orders     order.Repository
	apiKeys    auth.Repository

	// ping backs the readiness probe. Nil for backends without a remote.
	ping  health.Pinger
	close func()
}

func openBackend(ctx context.Context, lg *zap.Logger, cfg *Config) (*backend, error) {
	switch cfg.Storage {
	case StorageMemory:
		return openMemory(lg, cfg)
	default:
		return openPostgres(ctx, cfg)
	}
}

func openPostgres(ctx context.Context, cfg *Config) (*backend, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}

	return &backend{
		products:   postgres.NewProductRepository(pool),
		promotions: postgres.NewPromotionRepository(pool),
		orders:     postgres.NewOrderRepository(pool),
		apiKeys:    postgres.NewAPIKeyRepository(pool),
		ping:       pool,
		close:      pool.Close,
	}, nil
}

// openMemory serves the embedded catalog from memory. Orders do not survive
// a restart.
func openMemory(lg *zap.Logger, cfg *Config) (*backend, error) {
	data, err := seed.Default()
	if err != nil {
		return nil, errors.Wrap(err, "load seed catalog")
	}

	var keys []auth.APIKeyInfo
	if cfg.DevAPIKey != "" {
		keys = append(keys, auth.APIKeyInfo{
			ID:      "dev",
			Name:    "development",
			KeyHash: auth.Hash([]byte(cfg.APIKeyPepper), cfg.DevAPIKey),
			Scopes:  []string{handler.ScopeCheckout, handler.ScopeOrders},
		})
	} else {
		lg.Warn("No dev API key configured, checkout endpoints will reject every request")
	}

	lg.Info("Using in-memory storage",
		zap.Int("products", len(data.Products)),
		zap.Int("promotions", len(data.Promotions)),
	)
	promotions := memory.NewPromotions(data.Promotions...)
	return &backend{
		products:   memory.NewCatalog(data.Stores, data.Products),
		promotions: promotions,
		orders:     memory.NewOrders(promotions),
		apiKeys:    memory.NewAPIKeys(keys...),
		close:      func() {},
	}, nil
}
