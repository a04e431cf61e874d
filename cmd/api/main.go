package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"

	"rt-keeper/internal/adapters/api"
	"rt-keeper/internal/adapters/feed"
	"rt-keeper/internal/adapters/repo"
	"rt-keeper/internal/domain"
	"rt-keeper/internal/infra/cache"
	"rt-keeper/internal/infra/config"
	"rt-keeper/internal/infra/db"
	httpinfra "rt-keeper/internal/infra/http"
	applog "rt-keeper/internal/infra/log"
	"rt-keeper/internal/infra/metrics"
	importerusecase "rt-keeper/internal/usecase/importer"
	storeusecase "rt-keeper/internal/usecase/store"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось открыть базу")
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn); err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось выполнить миграции")
	}

	repoAdapter := repo.NewSQLite(conn)
	storeService := storeusecase.NewService(repoAdapter, repoAdapter, repoAdapter, repoAdapter)

	var appCache domain.Cache
	if cfg.RedisAddr != "" {
		appCache = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		logger.Info().Str("addr", cfg.RedisAddr).Msg("api: кэш Redis подключён")
	}

	feedClient := feed.NewClient(cfg.Feed.Timeout)
	importService := importerusecase.NewService(storeService, feedClient, appCache, cfg.Feed.OnceTTL, logger.With().Str("component", "importer").Logger())

	handler := api.NewHandler(storeService, importService, appCache, cfg.Cache.StatsTTL, cfg.Limits.ImportMaxBody, logger.With().Str("component", "api").Logger())

	srv := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	handler.Register(srv.Router)

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
