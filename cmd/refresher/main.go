package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"sharpms/dashboard/internal/apiclient"
	"sharpms/dashboard/internal/cache"
	"sharpms/dashboard/internal/config"
	"sharpms/dashboard/internal/database"
	"sharpms/dashboard/internal/fetch"
	"sharpms/dashboard/internal/hub"
	"sharpms/dashboard/internal/log"
	"sharpms/dashboard/internal/queue"
	"sharpms/dashboard/internal/repository"
	"sharpms/dashboard/internal/security"
	"sharpms/dashboard/internal/storage"
	"sharpms/dashboard/internal/tasks"
	"sharpms/dashboard/internal/telemetry"
	"sharpms/dashboard/internal/views"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("process", "refresher").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(cfg.Telemetry, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	client, err := cache.NewRedisClient(ctx, cfg.Redis, cfg.Redis.Consumer)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	var base storage.Storage
	switch cfg.Session.Backend {
	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pool.Close()
		base = repository.NewDeviceStorageRepository(pool, cfg.Session.StorageTTL)
	case config.BackendMemory:
		// Nothing is shared with the dashboard process, so there are no
		// sessions to refresh on behalf of.
		logger.Fatal().Msg("the refresher requires the redis or postgres session backend")
	default:
		base = storage.NewRedisStorage(client, cfg.Session.StorageTTL)
	}

	sealer, err := security.NewSealer(cfg.Session.StorageSecret, "device-storage")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init storage sealer")
	}

	api, err := apiclient.New(cfg.API, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init api client")
	}

	processor := tasks.NewProcessor(
		storage.NewSealed(base, sealer),
		views.NewRegistry(cfg.Polling),
		api,
		fetch.NewFetcher(fetch.NewRedisCache(client), cfg.Fetch.RevalidateWindow, cfg.Fetch.Retention, logger),
		hub.NewPublisher(client, cfg.Redis.Channel),
		logger,
	)
	consumer := queue.NewConsumer(
		client,
		cfg.Redis.Stream,
		cfg.Redis.Group,
		cfg.Redis.Consumer,
		cfg.Queues.ClaimInterval,
		logger,
		processor,
	)

	logger.Info().Str("stream", cfg.Redis.Stream).Str("group", cfg.Redis.Group).Msg("refresher starting")
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
	}
	logger.Info().Msg("refresher exited")
}
