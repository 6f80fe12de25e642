package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
	"github.com/xenking/storefront-checkout/internal/handler"
	"github.com/xenking/storefront-checkout/pkg/health"
	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

const serviceName = "storefront-api"

// stack is the assembled HTTP stack and the background loops it relies on.
type stack struct {
	handler  http.Handler
	sessions *cart.Sessions
	limiter  *httpmiddleware.Limiter
	probes   *health.Health
}

// newStack wires domain services, probes and middleware on top of store.
func newStack(lg *zap.Logger, cfg *Config, store *backend, tp trace.TracerProvider, mp metric.MeterProvider) (*stack, error) {
	unit, err := cfg.CurrencyUnit()
	if err != nil {
		return nil, err
	}
	meter := mp.Meter(serviceName)

	// Domain services.
	sessions := cart.NewSessions(cfg.Session.TTL)
	messages := promotion.NewMessages(unit)
	carts, err := cart.NewService(sessions, store.products,
		promotion.NewValidator(store.promotions),
		messages,
		cart.LogNotifier,
		meter,
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cart service")
	}
	submitter, err := order.NewSubmitter(store.orders, tp, meter)
	if err != nil {
		return nil, errors.Wrap(err, "create submitter")
	}

	// Health checks.
	probes := health.New()
	probes.Register(health.Liveness, "goroutines",
		health.GoroutineLimit(cfg.Health.MaxGoroutines),
		health.WithTimeout(time.Second),
	)
	probes.Register(health.Readiness, "sessions",
		health.CountLimit("session", cfg.Session.MaxSessions, sessions.Len),
		health.WithTimeout(time.Second),
	)
	if store.ping != nil {
		probes.Register(health.Readiness, "postgres", health.PingCheck(store.ping))
	}

	// HTTP.
	h := handler.NewHandler(handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL}, handler.Deps{
		Products:  store.products,
		Sessions:  sessions,
		Carts:     carts,
		Submitter: submitter,
		Orders:    store.orders,
		Auth:      auth.NewAuthenticator(store.apiKeys, []byte(cfg.APIKeyPepper)),
		Messages:  messages,
	})
	router := h.Router()
	router.Method(http.MethodGet, "/livez", probes.Handler(health.Liveness))
	router.Method(http.MethodGet, "/readyz", probes.Handler(health.Readiness))

	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	})

	return &stack{
		handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.SessionHeader, handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{handler.SessionHeader, httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			limiter.Middleware(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Instrument(serviceName, tp, mp),
		),
		sessions: sessions,
		limiter:  limiter,
		probes:   probes,
	}, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)
	ctx = zctx.Base(ctx, lg)

	store, err := openBackend(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	srv, err := newStack(lg, cfg, store, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}
	sessions, limiter, probes := srv.sessions, srv.limiter, srv.probes

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           srv.handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sessions.Run(gctx, cfg.Session.CleanupInterval)
	})
	g.Go(func() error {
		return limiter.Run(gctx)
	})
	g.Go(func() error {
		return probes.Run(gctx, cfg.Health.Interval)
	})

	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		probes.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		probes.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
