package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waitline/internal/api"
	"waitline/internal/config"
	"waitline/internal/database"
	"waitline/internal/events"
	"waitline/internal/logging"
	"waitline/internal/metrics"
	"waitline/internal/push"
	"waitline/internal/queue"
	"waitline/internal/repository"
	"waitline/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backup.Start(ctx)
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	notifier := initNotifier(ctx, cfg, db, redisClient, &logger)

	bus := events.NewEventBus()

	engineOpts := []queue.Option{
		queue.WithCache(buildSnapshotCache(cfg, redisClient, &logger)),
		queue.WithEventBus(bus),
		queue.WithNotifyTimeout(cfg.Queue.NotifyTimeoutDuration()),
	}
	if notifier != nil {
		engineOpts = append(engineOpts, queue.WithNotifier(notifier))
	}
	engine := queue.NewEngine(db, cfg.Queue.SeatCapacity, &logger, engineOpts...)

	httpServer := api.NewHTTPServer(cfg.API, cfg.Exports, engine, db, &logger)

	startMetrics(ctx, cfg, &logger)

	return serveHTTP(ctx, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// buildSnapshotCache prefers redis with an in-memory fallback behind a
// failover wrapper; without redis the in-memory cache serves alone.
func buildSnapshotCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) queue.Cache {
	ttl := cfg.Queue.SnapshotTTLDuration()
	memory := repository.NewMemorySnapshotCache(ttl)
	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisSnapshotCache(redisClient, ttl)
	return repository.NewFailoverSnapshotCache(primary, memory, logger)
}

// initNotifier wires the FCM sender behind the durable notify worker. A
// missing or broken credentials file leaves notifications off; the queue
// itself keeps working.
func initNotifier(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) queue.Notifier {
	if cfg.Firebase.CredentialsFile == "" {
		logger.Warn().Msg("firebase credentials not configured, notifications disabled")
		return nil
	}

	sender, err := push.NewSender(ctx, cfg.Firebase, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("push sender init failed, notifications disabled")
		return nil
	}

	notifyWorker := worker.NewNotifyWorker(db, sender, redisClient, worker.RetryPolicy{}, logger)
	go notifyWorker.Start(ctx)
	return notifyWorker
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serveHTTP(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
