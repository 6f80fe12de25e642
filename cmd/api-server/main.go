package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	shop "github.com/xenking/storefront-checkout/internal/app"
)

func main() {
	app.Run(run)
}

func run(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
	cfg, err := shop.LoadConfig()
	if err != nil {
		return errors.Wrap(err, "config")
	}
	lg.Debug("Configuration loaded",
		zap.String("storage", cfg.Storage),
		zap.String("currency", cfg.Currency),
		zap.Duration("session_ttl", cfg.Session.TTL),
	)
	return shop.Run(ctx, lg, m, cfg)
}
