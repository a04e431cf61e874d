package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open открывает (или создаёт) базу SQLite по указанному пути
// и включает WAL-журнал.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("создание каталога БД: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Одно соединение: хранилище однописательное.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// OpenMemory открывает временную базу в памяти. Используется в тестах;
// единственное соединение в пуле держит базу живой до Close.
func OpenMemory() (*sql.DB, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tweets (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	source_post_id TEXT NOT NULL,
	source TEXT NOT NULL,
	author_handle TEXT NOT NULL DEFAULT '',
	author_name TEXT NOT NULL DEFAULT '',
	verified INTEGER NOT NULL DEFAULT 0,
	blue_verified INTEGER NOT NULL DEFAULT 0,
	organization INTEGER NOT NULL DEFAULT 0,
	government INTEGER NOT NULL DEFAULT 0,
	text TEXT NOT NULL DEFAULT '',
	quoted_text TEXT NOT NULL DEFAULT '',
	quoted_author TEXT NOT NULL DEFAULT '',
	media_json TEXT NOT NULL DEFAULT '[]',
	entities_json TEXT NOT NULL DEFAULT '{}',
	engagement_json TEXT NOT NULL DEFAULT '{}',
	captured_at TEXT NOT NULL,
	original_created_at TEXT,
	tags_json TEXT NOT NULL DEFAULT '[]',
	auto_tags_json TEXT NOT NULL DEFAULT '[]',
	is_available INTEGER NOT NULL DEFAULT 1,
	raw_payload TEXT,
	synced_at TEXT,
	UNIQUE (source_post_id, source)
)`,
	`CREATE INDEX IF NOT EXISTS idx_tweets_captured_at ON tweets (captured_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tweets_source ON tweets (source)`,
	`CREATE TABLE IF NOT EXISTS categories (
	name TEXT PRIMARY KEY,
	keywords_json TEXT NOT NULL DEFAULT '[]'
)`,
	`CREATE TABLE IF NOT EXISTS saved_searches (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	query TEXT NOT NULL DEFAULT '',
	filters_json TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	data TEXT NOT NULL DEFAULT '{}'
)`,
}

// Migrate применяет схему. Все выражения идемпотентны.
func Migrate(ctx context.Context, conn *sql.DB) error {
	for _, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("применение схемы: %w", err)
		}
	}
	return nil
}
