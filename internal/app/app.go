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

	"github.com/travelbooking/search/internal/config"
	"github.com/travelbooking/search/internal/engine"
	esengine "github.com/travelbooking/search/internal/engine/elasticsearch"
	"github.com/travelbooking/search/internal/engine/memory"
	"github.com/travelbooking/search/internal/event"
	handler "github.com/travelbooking/search/internal/handler/http"
	"github.com/travelbooking/search/internal/repository/postgres"
	"github.com/travelbooking/search/internal/service"
	"github.com/travelbooking/search/migrations"
	"github.com/travelbooking/search/pkg/database"
	"github.com/travelbooking/search/pkg/health"
	"github.com/travelbooking/search/pkg/httpclient"
	pkgkafka "github.com/travelbooking/search/pkg/kafka"
	"github.com/travelbooking/search/pkg/tracing"
)

const startupIndexTimeout = 30 * time.Second

// App wires together all dependencies and runs the search service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	dlq            *pkgkafka.DLQProducer
	consumers      []*pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Relational store.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool
	database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, "search"); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}
	if cfg.RunMigrations {
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	store := postgres.NewStore(pool)

	// Search engine.
	eng, err := newEngine(cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	searchService := service.NewSearchService(eng, store, logger)

	// Provision indices up front. Failure is logged by the service and the
	// instance keeps serving from the store.
	initCtx, cancel := context.WithTimeout(ctx, startupIndexTimeout)
	searchService.EnsureIndices(initCtx)
	cancel()

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", pool.Ping)
	healthHandler.RegisterOptional("elasticsearch", eng.Ping)

	if cfg.KafkaEnabled {
		a.initConsumers(ctx, searchService, healthHandler)
	}

	// HTTP router.
	router := handler.NewRouter(searchService, healthHandler, handler.RouterConfig{
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		RequestTimeout:    time.Duration(cfg.RequestTimeoutSecs) * time.Second,
		SearchCacheMaxAge: cfg.SearchCacheMaxAge,
	}, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

func newEngine(cfg *config.Config, logger *slog.Logger) (engine.IndexEngine, error) {
	if cfg.SearchEngine == config.EngineMemory {
		logger.Info("in-memory search engine initialized")
		return memory.New(), nil
	}

	esCfg := cfg.Elasticsearch()
	esCfg.Transport = httpclient.NewBreakerTransport(http.DefaultTransport, cfg.Breaker(), logger)
	eng, err := esengine.New(esCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init elasticsearch engine: %w", err)
	}
	logger.Info("elasticsearch search engine initialized",
		slog.Any("addresses", esCfg.Addresses),
		slog.String("index_prefix", esCfg.IndexPrefix),
	)
	return eng, nil
}

// initConsumers subscribes to entity change topics. Redis backs the
// idempotency store when reachable; otherwise each replica tracks event IDs
// in memory.
func (a *App) initConsumers(ctx context.Context, searchService *service.SearchService, healthHandler *health.Handler) {
	cfg, logger := a.cfg, a.logger
	ttl := time.Duration(cfg.IdempotencyTTLHours) * time.Hour

	var idempotency pkgkafka.IdempotencyStore
	client, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis unavailable, using in-memory idempotency store", slog.String("error", err.Error()))
		idempotency = pkgkafka.NewMemoryIdempotencyStore(ttl)
	} else {
		a.redis = client
		idempotency = pkgkafka.NewRedisIdempotencyStore(client, "search:events", ttl)
		healthHandler.RegisterOptional("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	var dlq pkgkafka.DeadLetterPublisher
	if cfg.KafkaDLQEnabled {
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		dlq = a.dlq
	}

	eventConsumer := event.NewConsumer(searchService, logger)
	h := pkgkafka.IdempotentHandler(idempotency, eventConsumer.Handle, logger)

	for _, topic := range event.Topics() {
		a.consumers = append(a.consumers, pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.KafkaGroupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6, // 10 MB
			DLQ:      dlq,
		}, h, logger))
	}

	healthHandler.RegisterOptional("kafka", func(ctx context.Context) error {
		return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
	})

	logger.Info("kafka consumers initialized",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.Int("topic_count", len(a.consumers)),
	)
}

// Run starts the HTTP server and Kafka consumers, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	for _, c := range a.consumers {
		go func(c *pkgkafka.Consumer) {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer %s: %w", c.Topic(), err)
			}
		}(c)
	}

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
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dlq producer: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	a.pool.Close()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
