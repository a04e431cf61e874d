package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Ошибки ядра. Дубликат по ключу дедупликации ошибкой не считается
// и передаётся через CreateResult.
var (
	ErrNotFound      = errors.New("запись не найдена")
	ErrInvalidFormat = errors.New("нераспознанный формат данных")
)

// TweetRepo управляет записями в локальном хранилище.
type TweetRepo interface {
	// Insert вставляет запись под ограничением уникальности ключа
	// (SourcePostID, Source). При конфликте возвращает inserted=false.
	Insert(ctx context.Context, tweet Tweet) (inserted bool, err error)
	Get(ctx context.Context, id string) (Tweet, error)
	GetByDedupKey(ctx context.Context, sourcePostID string, source Source) (Tweet, error)
	// ListAll возвращает все записи в порядке вставки.
	ListAll(ctx context.Context) ([]Tweet, error)
	// Save перезаписывает изменяемые поля существующей записи.
	Save(ctx context.Context, tweet Tweet) error
	Delete(ctx context.Context, id string) (bool, error)
}

// CategoryRepo хранит пользовательские категории ключевых слов.
type CategoryRepo interface {
	UpsertCategory(ctx context.Context, category Category) error
	ListCategories(ctx context.Context) ([]Category, error)
	DeleteCategory(ctx context.Context, name string) (bool, error)
}

// SavedSearchRepo хранит сохранённые поиски.
type SavedSearchRepo interface {
	SaveSearch(ctx context.Context, search SavedSearch) error
	ListSearches(ctx context.Context) ([]SavedSearch, error)
	DeleteSearch(ctx context.Context, id string) (bool, error)
}

// SettingsRepo хранит настройки как непрозрачный JSON.
type SettingsRepo interface {
	GetSettings(ctx context.Context) (json.RawMessage, error)
	PutSettings(ctx context.Context, raw json.RawMessage) error
}

// FeedFetcher загружает содержимое синдикационной ленты.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
