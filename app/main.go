package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"branch-ledger/internal/listeners"
	"branch-ledger/internal/repositories"
	"branch-ledger/internal/routes"
	"branch-ledger/migrations"
	"branch-ledger/pkg/config"
	"branch-ledger/pkg/database/postgresql"
	"branch-ledger/pkg/eventbus"
	applogger "branch-ledger/pkg/logger"
	"branch-ledger/pkg/observability"
	"branch-ledger/pkg/service"
	"branch-ledger/pkg/validation"
	"branch-ledger/pkg/websocket"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.New()
	logger := applogger.NewLogger(cfg)
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupTracingSDK(ctx, cfg.Otel)
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}

	dbConn, err := postgresql.ConnectDB(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	if cfg.Postgres.RunMigrations {
		if err := postgresql.Migrate(dbConn, migrations.FS); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	cache := newCache(ctx, cfg.Redis, logger)

	bus := eventbus.New(logger)
	listeners.NewAuditRecorder(repositories.NewAuditRepository(dbConn, logger), logger).Register(bus)

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)
	listeners.NewLiveFeed(hub, logger).Register(bus)

	var kafkaPublisher *listeners.KafkaAuditPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher = listeners.NewKafkaAuditPublisher(listeners.NewKafkaWriter(cfg.Kafka), logger)
		kafkaPublisher.Register(bus)
		logger.Info("audit events mirrored to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.AuditTopic))
	}

	if cfg.JWT.SecretKey == "" {
		logger.Fatal("JWT_SECRET_KEY is not set")
	}
	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, logger)

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()

	svcs := routes.BuildServices(dbConn, cache, bus, cfg, logger)
	svcs.Feed = hub
	routes.InitRouter(e, svcs, jwtSvc, dbConn, logger)

	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("server started", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	// Audit listeners run asynchronously; drain them before the pool closes.
	bus.Wait()
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka writer close", zap.Error(err))
		}
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown", zap.Error(err))
	}
}

// newCache returns a Redis-backed cache when an address is configured and
// reachable, otherwise a cache that always misses.
func newCache(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) repositories.CacheRepositoryInterface {
	if cfg.Address == "" {
		logger.Info("redis disabled, location cache off")
		return repositories.NewNoopCacheRepository()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.Warn("redis unreachable, location cache off", zap.Error(err), zap.String("address", cfg.Address))
		_ = client.Close()
		return repositories.NewNoopCacheRepository()
	}
	return repositories.NewRedisCacheRepository(client)
}
