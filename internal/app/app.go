package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agenthub/wishlist-service/internal/auth"
	"github.com/agenthub/wishlist-service/internal/config"
	"github.com/agenthub/wishlist-service/internal/event"
	handler "github.com/agenthub/wishlist-service/internal/handler/http"
	"github.com/agenthub/wishlist-service/internal/repository"
	redisrepo "github.com/agenthub/wishlist-service/internal/repository/redis"
	"github.com/agenthub/wishlist-service/internal/repository/remote"
	"github.com/agenthub/wishlist-service/internal/service"
	"github.com/agenthub/wishlist-service/pkg/database"
	"github.com/agenthub/wishlist-service/pkg/health"
	"github.com/agenthub/wishlist-service/pkg/httpclient"
	pkgkafka "github.com/agenthub/wishlist-service/pkg/kafka"
	"github.com/agenthub/wishlist-service/pkg/tracing"
)

// App wires together all dependencies and runs the wishlist service.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	rdb             *redis.Client
	producer        *pkgkafka.Producer
	httpServer      *http.Server
	tracingShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// The backing store is selected here once: the remote wishlist API when it is
// configured and reachable, the Redis snapshot store otherwise.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Tracing.
	tracingCfg := tracing.Config{
		ServiceName:    "wishlist-service",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	}
	tracingShutdown, err := tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// Redis is always connected: it backs the snapshot store in legacy mode
	// and its health check either way.
	redisCfg := database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	}
	rdb, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", redisCfg.Addr()),
		slog.Int("db", cfg.RedisDB),
	)

	// Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	tokens := &auth.StaticTokenSource{User: cfg.UserID, Bearer: cfg.APIToken}

	// Capability detection: commit to the remote gateway only when it is
	// configured and answers its health probe; otherwise fall back to the
	// local snapshot store (legacy mode).
	var repo repository.WishlistRepository
	legacy := true
	if cfg.RemoteConfigured() {
		base := httpclient.New(httpclient.DefaultConfig())
		client := httpclient.NewCircuitBreakerClient(base, httpclient.DefaultCircuitBreakerConfig(remoteServiceName), logger)
		gateway := remote.NewWishlistRepository(client, cfg.APIBaseURL, tokens)
		if err := gateway.Ping(ctx); err != nil {
			logger.Warn("remote wishlist API unreachable, falling back to local snapshot store",
				slog.String("base_url", cfg.APIBaseURL),
				slog.String("error", err.Error()),
			)
		} else {
			repo = gateway
			legacy = false
			logger.Info("using remote wishlist API", slog.String("base_url", cfg.APIBaseURL))
		}
	} else {
		logger.Info("remote wishlist API not configured, running in legacy mode")
	}
	if legacy {
		repo = redisrepo.NewWishlistRepository(rdb, cfg.UserID)
	}

	// Build the dependency graph.
	eventProducer := event.NewProducer(producer, logger)
	sync := service.NewSynchronizer(repo, tokens, eventProducer, logger, legacy)
	favorites := service.NewFavorites(sync)

	// Initial refresh is best effort; the service starts with an empty
	// collection if it fails and callers refresh explicitly.
	if err := sync.LoadAll(ctx); err != nil {
		logger.Warn("initial wishlist refresh failed", slog.String("error", err.Error()))
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if !legacy {
		gateway := repo.(*remote.WishlistRepository)
		healthHandler.Register("wishlist-api", gateway.Ping)
	}
	// Event publishing is best effort, so a dead broker degrades readiness
	// instead of failing it.
	healthHandler.RegisterNonCritical("kafka", producer.Ping)

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		Environment:        cfg.Environment,
		UserID:             cfg.UserID,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		PprofAllowedCIDRs:  cfg.PprofAllowedCIDRs,
	}, sync, favorites, healthHandler, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		rdb:             rdb,
		producer:        producer,
		httpServer:      httpServer,
		tracingShutdown: tracingShutdown,
	}, nil
}

// remoteServiceName labels circuit breaker state changes and downstream
// errors for the remote wishlist API.
const remoteServiceName = "wishlist-api"

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	if err := a.tracingShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
