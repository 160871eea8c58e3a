package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"sharpms/dashboard/internal/apiclient"
	"sharpms/dashboard/internal/cache"
	"sharpms/dashboard/internal/config"
	"sharpms/dashboard/internal/database"
	"sharpms/dashboard/internal/fetch"
	"sharpms/dashboard/internal/handlers"
	"sharpms/dashboard/internal/hub"
	"sharpms/dashboard/internal/jobs"
	"sharpms/dashboard/internal/log"
	"sharpms/dashboard/internal/poll"
	"sharpms/dashboard/internal/queue"
	"sharpms/dashboard/internal/repository"
	"sharpms/dashboard/internal/security"
	"sharpms/dashboard/internal/server"
	"sharpms/dashboard/internal/session"
	"sharpms/dashboard/internal/storage"
	"sharpms/dashboard/internal/telemetry"
	"sharpms/dashboard/internal/views"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(cfg.Telemetry, logger)

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, cfg.Telemetry.ServiceName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	checks := map[string]handlers.Check{"redis": cache.Check(redisClient)}

	var (
		dbPool *pgxpool.Pool
		purger jobs.ExpiredPurger
		base   storage.Storage
	)
	switch cfg.Session.Backend {
	case config.BackendPostgres:
		dbPool, err = database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		repo := repository.NewDeviceStorageRepository(dbPool, cfg.Session.StorageTTL)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("ensure device storage schema failed")
		}
		base, purger = repo, repo
		checks["postgres"] = dbPool.Ping
	case config.BackendMemory:
		logger.Warn().Msg("memory session backend: sessions do not survive restarts")
		base = storage.NewMemoryStorage()
	default:
		base = storage.NewRedisStorage(redisClient, cfg.Session.StorageTTL)
	}

	sealer, err := security.NewSealer(cfg.Session.StorageSecret, "device-storage")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init storage sealer")
	}
	store := storage.NewSealed(base, sealer)

	api, err := apiclient.New(cfg.API, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init api client")
	}

	registry := views.NewRegistry(cfg.Polling)
	provider := session.NewProvider(store, api, logger)
	fetcher := fetch.NewFetcher(fetch.NewRedisCache(redisClient), cfg.Fetch.RevalidateWindow, cfg.Fetch.Retention, logger)
	watchers := poll.NewRegistry(redisClient, cfg.Fetch.WatchTTL)
	sockets := hub.New()

	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Config:   cfg,
		Log:      logger,
		Sessions: provider,
		API:      api,
		Fetcher:  fetcher,
		Watcher:  watchers,
		Views:    registry,
		Hub:      sockets,
		Checks:   checks,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	bridge := hub.NewBridge(redisClient, cfg.Redis.Channel, sockets, logger)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("update bridge stopped")
		}
	}()

	scheduler := jobs.NewScheduler(jobs.Options{
		Views:    registry.Polled(),
		Watchers: watchers,
		Queue:    queue.NewProducer(redisClient, cfg.Redis.Stream),
		Sessions: provider,
		Idle:     cfg.Session.IdleTimeout,
		Purger:   purger,
	}, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	shutdown(logger, httpServer, scheduler, dbPool, redisClient, shutdownTracing)
}

func shutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client, shutdownTracing func(context.Context) error) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("scheduler jobs still running at shutdown")
	}

	if db != nil {
		db.Close()
	}
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown error")
	}

	logger.Info().Msg("server exited cleanly")
}
