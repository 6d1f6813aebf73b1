package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Papaai2/baladymall-sub000/internal/config"
	"github.com/Papaai2/baladymall-sub000/internal/event"
	handler "github.com/Papaai2/baladymall-sub000/internal/handler/http"
	"github.com/Papaai2/baladymall-sub000/internal/notification"
	"github.com/Papaai2/baladymall-sub000/internal/repository/postgres"
	redisrepo "github.com/Papaai2/baladymall-sub000/internal/repository/redis"
	"github.com/Papaai2/baladymall-sub000/internal/service"
	"github.com/Papaai2/baladymall-sub000/pkg/database"
	"github.com/Papaai2/baladymall-sub000/pkg/health"
	"github.com/Papaai2/baladymall-sub000/pkg/httpclient"
	pkgkafka "github.com/Papaai2/baladymall-sub000/pkg/kafka"
	"github.com/Papaai2/baladymall-sub000/pkg/tracing"
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.Init(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	if err := prometheus.Register(database.NewPoolStatsCollector(pool, config.ServiceName)); err != nil {
		logger.Warn("pool stats collector not registered", slog.String("error", err.Error()))
	}

	if cfg.MigrateOnStart {
		if err := database.RunMigrations(ctx, pool, postgres.Migrations(), logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	// Initialize Redis client.
	rdb, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)

	// Kafka is optional; without brokers events are dropped.
	var (
		producer *pkgkafka.Producer
		events   interface {
			service.CartEvents
			service.OrderEvents
		} = event.Noop{}
	)
	if cfg.EventsEnabled() {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		events = event.NewProducer(producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("KAFKA_BROKERS not set; domain events are disabled")
	}

	// Build the dependency graph.
	carts := redisrepo.NewCartRepository(rdb, cfg.CartTTL())
	catalog := postgres.NewCatalogRepository(pool)
	orders := postgres.NewOrderRepository(pool, postgres.TxConfig{
		Timeout:     cfg.CheckoutTxTimeout,
		LockTimeout: cfg.CheckoutLockTimeout,
	})
	directory := postgres.NewDirectoryRepository(pool)

	cartService := service.NewCartService(carts, catalog, events, logger, service.CartLimits{
		MaxQuantityPerLine: cfg.CartMaxQtyPerLine,
		MaxLinesPerCart:    cfg.CartMaxLines,
	})
	cartValidator := service.NewCartValidator(carts, catalog, logger)
	dispatcher := notification.NewDispatcher(newSender(cfg, logger), directory, logger, cfg.NotifyConcurrency)
	checkoutService := service.NewCheckoutService(
		cartService,
		cartValidator,
		orders,
		service.Pricing{Shipping: service.FlatShipping(cfg.ShippingFlatFee)},
		events,
		dispatcher,
		logger,
		service.CheckoutConfig{Currency: cfg.Currency, NotifyTimeout: cfg.NotifyTimeout},
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	// HTTP router.
	router := handler.NewRouter(cartService, cartValidator, checkoutService, healthHandler, logger, handler.RouterConfig{
		ServiceName:    config.ServiceName,
		LoginURL:       cfg.LoginURL,
		RequestTimeout: time.Duration(cfg.HTTPRequestTimeoutS) * time.Second,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTPRequestTimeoutS)*time.Second + cfg.NotifyTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		rdb:            rdb,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// newSender picks the notification transport named by NOTIFY_DRIVER.
func newSender(cfg *config.Config, logger *slog.Logger) notification.Sender {
	if cfg.NotifyDriver != "http" {
		return notification.NewLogSender(logger)
	}

	cb := httpclient.DefaultCircuitBreakerConfig("mail-relay")
	cb.MaxRequests = cfg.CBMaxRequests
	cb.Interval = time.Duration(cfg.CBInterval) * time.Second
	cb.Timeout = time.Duration(cfg.CBTimeout) * time.Second
	cb.FailureRatio = cfg.CBFailureRatio
	cb.MinRequests = cfg.CBMinRequests

	client := httpclient.NewCircuitBreakerClient(httpclient.New(httpclient.DefaultConfig()), cb, logger)
	return notification.NewHTTPSender(client, cfg.NotifyHTTPURL, cfg.NotifyFrom)
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// In-flight checkouts finish, including their notifications.
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.pool.Close()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
