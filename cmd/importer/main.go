package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"rt-keeper/internal/adapters/feed"
	"rt-keeper/internal/adapters/repo"
	"rt-keeper/internal/domain"
	"rt-keeper/internal/infra/config"
	"rt-keeper/internal/infra/db"
	applog "rt-keeper/internal/infra/log"
	"rt-keeper/internal/infra/metrics"
	importerusecase "rt-keeper/internal/usecase/importer"
	storeusecase "rt-keeper/internal/usecase/store"
)

// Одноразовый запуск импорта: файл архива или CSV, либо URL RSS-ленты.
func main() {
	format := flag.String("format", "", "формат импорта: archive, csv или feed")
	file := flag.String("file", "", "путь к файлу с данными (archive, csv)")
	url := flag.String("url", "", "URL RSS-ленты (feed)")
	flag.Parse()

	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("importer: не удалось открыть базу")
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn); err != nil {
		logger.Fatal().Err(err).Msg("importer: не удалось выполнить миграции")
	}

	repoAdapter := repo.NewSQLite(conn)
	storeService := storeusecase.NewService(repoAdapter, repoAdapter, repoAdapter, repoAdapter)
	feedClient := feed.NewClient(cfg.Feed.Timeout)
	importService := importerusecase.NewService(storeService, feedClient, nil, cfg.Feed.OnceTTL, logger.With().Str("component", "importer").Logger())

	var report domain.ImportReport
	switch domain.ImportFormat(*format) {
	case domain.FormatArchive, domain.FormatCSV:
		if *file == "" {
			logger.Fatal().Msg("importer: не указан путь к файлу (-file)")
		}
		payload, err := os.ReadFile(*file)
		if err != nil {
			logger.Fatal().Err(err).Msg("importer: не удалось прочитать файл")
		}
		report, err = importService.Import(ctx, domain.ImportFormat(*format), payload)
		if err != nil {
			logger.Fatal().Err(err).Msg("importer: импорт не выполнен")
		}
	case domain.FormatFeed:
		if *url == "" {
			logger.Fatal().Msg("importer: не указан URL ленты (-url)")
		}
		report, err = importService.ImportFeed(ctx, *url)
		if err != nil {
			logger.Fatal().Err(err).Msg("importer: импорт не выполнен")
		}
	default:
		logger.Fatal().Str("format", *format).Msg("importer: неизвестный формат")
	}

	logger.Info().
		Int("added", report.AddedCount).
		Int("duplicates", report.DuplicateCount).
		Int("total", report.TotalCandidates).
		Msg("importer: готово")
}
