package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campusrun/internal/api"
	"campusrun/internal/auth"
	"campusrun/internal/config"
	"campusrun/internal/database"
	"campusrun/internal/domain"
	"campusrun/internal/events"
	"campusrun/internal/google"
	"campusrun/internal/logging"
	"campusrun/internal/metrics"
	"campusrun/internal/repository"
	"campusrun/internal/service"
	"campusrun/internal/storage"
	"campusrun/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

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

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	bus, closeSinks := initEventSinks(cfg, redisClient, &logger)
	defer closeSinks()

	sheetsWorker := initSheetsWorker(ctx, cfg, db, redisClient, &logger)

	var syncWorker domain.SyncWorker
	if sheetsWorker != nil {
		syncWorker = sheetsWorker
	}
	missions := service.NewMissionService(db, bus, syncWorker, cfg.Pricing, &logger)

	tokens, err := auth.NewJWTProvider(cfg.API.Auth)
	if err != nil {
		return fmt.Errorf("init identity provider: %w", err)
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}
	filesDir := ""
	if local, ok := objects.(*storage.LocalStorage); ok {
		filesDir = local.Dir()
	}

	state := initStateRepository(cfg, redisClient, &logger)

	if cfg.Backup.Enabled {
		go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)
	}

	httpServer := api.NewHTTPServer(cfg.API, api.Dependencies{
		Missions:       missions,
		Identity:       tokens,
		Limiter:        state,
		Storage:        objects,
		FilesDir:       filesDir,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Health:         db.PingContext,
	}, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, missions, tokens, nil, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	startMetrics(ctx, cfg, &logger)

	ev := logger.Info().Bool("http", cfg.API.HTTP.Enabled).Int("http_port", cfg.API.HTTP.Port)
	if grpcServer != nil {
		ev = ev.Str("grpc_addr", grpcServer.Addr())
	}
	ev.Msg("campusrun api started")

	return serve(ctx, cfg, httpServer, grpcServer, &logger)
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
	logger := *logging.Component(baseLogger, "api")

	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initEventSinks fans committed mission changes out to Redis Pub/Sub and,
// when configured, to the AMQP exchange.
func initEventSinks(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) (*events.EventBus, func()) {
	bus := events.NewEventBus()
	closers := []func() error{}

	if redisClient != nil {
		broadcaster := events.NewRedisBroadcaster(redisClient, cfg.Events.RedisChannel, logger)
		bus.Subscribe(events.AllEvents, broadcaster.Handle)
	}

	if cfg.AMQP.URL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("amqp connection failed, continuing without broker")
		} else {
			bus.Subscribe(events.AllEvents, publisher.Handle)
			closers = append(closers, publisher.Close)
		}
	}

	return bus, func() {
		for _, c := range closers {
			_ = c()
		}
	}
}

func initSheetsWorker(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) *worker.SheetsWorker {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.MissionsSpreadsheetID == "" {
		logger.Info().Msg("google sheets not configured, mirror disabled")
		return nil
	}

	sheets, err := google.NewMissionSheets(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.MissionsSpreadsheetID, cfg.Google.MissionsSheetName)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheets.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets connection test failed, continuing without sheets")
		return nil
	}
	if err := sheets.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets cache warm-up failed")
	}

	sheetsWorker := worker.NewSheetsWorker(db, sheets, redisClient, worker.DefaultRetryPolicy(), logger)
	go sheetsWorker.Start(ctx)

	logger.Info().Msg("google sheets mirror started")
	return sheetsWorker
}

func initStateRepository(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.StateRepository {
	ttl, err := time.ParseDuration(cfg.Events.ViewTTL)
	if err != nil || ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	fallback := repository.NewMemoryStateRepository(ttl)
	if redisClient == nil {
		return fallback
	}
	primary := repository.NewRedisStateRepository(redisClient, ttl)
	return repository.NewFailoverStateRepository(primary, fallback, logger)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	metrics.Register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(stopCtx)
	}()
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// serve runs the transports until ctx is cancelled, then drains them within shutdownTimeout.
func serve(ctx context.Context, cfg *config.Config, httpServer *api.HTTPServer, grpcServer *api.GRPCServer, logger *zerolog.Logger) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server exited")
			}
		}()
	}
	if cfg.API.HTTP.Enabled {
		go func() {
			if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("http server exited")
			}
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(stopCtx)
	}
	if err := httpServer.Shutdown(stopCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}
	logger.Info().Msg("campusrun api stopped")
	return nil
}
