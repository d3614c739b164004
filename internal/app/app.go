package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-commerce/internal/domain/auth"
	"github.com/xenking/kart-commerce/internal/domain/customer"
	"github.com/xenking/kart-commerce/internal/domain/discount"
	"github.com/xenking/kart-commerce/internal/domain/order"
	"github.com/xenking/kart-commerce/internal/domain/product"
	"github.com/xenking/kart-commerce/internal/domain/stock"
	"github.com/xenking/kart-commerce/internal/events"
	"github.com/xenking/kart-commerce/internal/handler"
	"github.com/xenking/kart-commerce/internal/storage/postgres"
	"github.com/xenking/kart-commerce/internal/storage/redisx"
	"github.com/xenking/kart-commerce/pkg/health"
	"github.com/xenking/kart-commerce/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	srv, err := build(ctx, lg, cfg, pool, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}
	defer srv.close()
	healthSvc := srv.health

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           srv.handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

type server struct {
	handler http.Handler
	health  *health.Health
	closers []func()
}

func (s *server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// build wires repositories, services and the middleware chain on top of an
// already migrated pool. Optional Redis and Kafka components are enabled by
// their config sections.
func build(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	pool *pgxpool.Pool,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*server, error) {
	discountCfg, err := cfg.Discount.Evaluator()
	if err != nil {
		return nil, errors.Wrap(err, "discount config")
	}
	tokens, err := auth.NewTokens([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		return nil, errors.Wrap(err, "token issuer")
	}

	srv := &server{health: health.New()}
	srv.health.AddReadiness(health.Check{Name: "postgres", Timeout: 5 * time.Second, Func: health.PingCheck(pool)})
	srv.health.AddLiveness(health.Check{Name: "goroutines", Timeout: time.Second, Func: health.GoroutineCountCheck(10000)})

	// Redis is not a readiness dependency: order creation proceeds without it.
	var idempotency handler.Idempotency
	if cfg.RedisAddr != "" {
		rdb := redisx.NewClient(cfg.RedisAddr)
		srv.closers = append(srv.closers, func() { _ = rdb.Close() })
		idem := redisx.NewIdempotency(rdb, cfg.IdempotencyTTL)
		if err := idem.Ping(ctx); err != nil {
			lg.Warn("Redis unreachable, requests will skip idempotency until it recovers", zap.Error(err))
		}
		idempotency = idem
		lg.Info("Idempotency keys enabled", zap.String("redis", cfg.RedisAddr))
	}

	var publisher order.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		p := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		srv.closers = append(srv.closers, func() {
			if err := p.Close(); err != nil {
				lg.Warn("Close event publisher", zap.Error(err))
			}
		})
		publisher = p
		lg.Info("Order events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// Repositories.
	db := postgres.NewDB(pool)
	customerRepo := postgres.NewCustomerRepository(db)
	productRepo := postgres.NewProductRepository(db)
	stockRepo := postgres.NewStockRepository(db)
	orderRepo := postgres.NewOrderRepository(db)

	// Domain services.
	hasher := auth.BcryptHasher{Cost: cfg.Auth.BcryptCost}
	orderService, err := order.NewService(order.Deps{
		Customers:      customerRepo,
		Products:       productRepo,
		Stock:          stock.NewLedger(stockRepo),
		Classifier:     customer.NewClassifier(orderRepo),
		Discounts:      discount.NewEvaluator(discountCfg, cfg.Discount.Source()),
		Orders:         orderRepo,
		Tx:             db,
		Publisher:      publisher,
		TracerProvider: tp,
		MeterProvider:  mp,
	})
	if err != nil {
		srv.close()
		return nil, errors.Wrap(err, "order service")
	}

	h := handler.New(handler.Deps{
		Auth:        auth.NewService(customerRepo, hasher, tokens),
		Products:    product.NewService(productRepo),
		Stock:       stock.NewService(stockRepo, productRepo),
		Customers:   customer.NewService(customerRepo, hasher),
		Orders:      orderService,
		Idempotency: idempotency,
		Health:      srv.health,
	})

	srv.handler = httpmiddleware.Wrap(h.Routes(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.RequestID(),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", "Idempotency-Key", httpmiddleware.HeaderRequestID},
			ExposeHeaders:    []string{httpmiddleware.HeaderRequestID, "Idempotent-Replayed"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.Instrument("kart-api", tp, mp),
	)
	return srv, nil
}
