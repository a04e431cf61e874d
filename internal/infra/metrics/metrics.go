package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ImportItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_items_total",
		Help: "Количество обработанных кандидатов импорта",
	}, []string{"format", "outcome"})

	ImportDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "import_duration_seconds",
		Help:    "Длительность одного импорта",
		Buckets: prometheus.DefBuckets,
	}, []string{"format"})

	SearchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "search_duration_seconds",
		Help:    "Длительность одного поискового запроса",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	FeedFetchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_fetch_errors_total",
		Help: "Ошибки загрузки синдикационных лент",
	})

	StorageRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storage_request_duration_seconds",
		Help:    "Длительность запросов к локальному хранилищу",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"operation", "target", "status"})

	StorageRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_request_total",
		Help: "Количество запросов к локальному хранилищу",
	}, []string{"operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ImportItemsTotal,
		ImportDuration,
		SearchDuration,
		FeedFetchErrors,
		StorageRequestDuration,
		StorageRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveStorageRequest записывает длительность и статус запроса к хранилищу.
func ObserveStorageRequest(operation, target string, start time.Time, err error) {
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	StorageRequestDuration.WithLabelValues(operation, target, status).Observe(duration)
	StorageRequestTotal.WithLabelValues(operation, target, status).Inc()
}

// ObserveImport записывает итог импорта по формату.
func ObserveImport(format string, added, duplicates int, start time.Time) {
	ImportItemsTotal.WithLabelValues(format, "added").Add(float64(added))
	ImportItemsTotal.WithLabelValues(format, "duplicate").Add(float64(duplicates))
	ImportDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())
}
