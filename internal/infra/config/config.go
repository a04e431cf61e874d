package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Amsterdam"`
	Port   int    `envconfig:"PORT" default:"8080"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	DBPath string `envconfig:"DB_PATH" default:"data/rtkeeper.db"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Feed struct {
		Timeout time.Duration `envconfig:"FEED_TIMEOUT" default:"30s"`
		OnceTTL time.Duration `envconfig:"FEED_ONCE_TTL" default:"1m"`
	} `envconfig:""`

	Limits struct {
		PageSizeMax   int   `envconfig:"PAGE_SIZE_MAX" default:"200"`
		ImportMaxBody int64 `envconfig:"IMPORT_MAX_BODY" default:"33554432"`
	} `envconfig:""`

	Cache struct {
		StatsTTL time.Duration `envconfig:"STATS_CACHE_TTL" default:"30s"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
