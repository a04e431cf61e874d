package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rt-keeper/internal/domain"
	"rt-keeper/internal/infra/metrics"
)

// SQLite реализует репозитории на основе database/sql поверх встраиваемой БД.
type SQLite struct {
	conn *sql.DB
}

var (
	_ domain.TweetRepo       = (*SQLite)(nil)
	_ domain.CategoryRepo    = (*SQLite)(nil)
	_ domain.SavedSearchRepo = (*SQLite)(nil)
	_ domain.SettingsRepo    = (*SQLite)(nil)
)

// NewSQLite создаёт адаптер БД.
func NewSQLite(conn *sql.DB) *SQLite {
	return &SQLite{conn: conn}
}

func (s *SQLite) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

const tweetColumns = `id, source_post_id, source, author_handle, author_name,
verified, blue_verified, organization, government,
text, quoted_text, quoted_author,
media_json, entities_json, engagement_json,
captured_at, original_created_at, tags_json, auto_tags_json,
is_available, raw_payload, synced_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTweet(row rowScanner) (domain.Tweet, error) {
	var (
		t             domain.Tweet
		mediaJSON     string
		entitiesJSON  string
		engageJSON    string
		capturedAt    string
		originalAt    sql.NullString
		tagsJSON      string
		autoTagsJSON  string
		rawPayload    sql.NullString
		syncedAt      sql.NullString
	)
	err := row.Scan(&t.ID, &t.SourcePostID, &t.Source, &t.AuthorHandle, &t.AuthorName,
		&t.Verified, &t.BlueVerified, &t.Organization, &t.Government,
		&t.Text, &t.QuotedText, &t.QuotedAuthor,
		&mediaJSON, &entitiesJSON, &engageJSON,
		&capturedAt, &originalAt, &tagsJSON, &autoTagsJSON,
		&t.IsAvailable, &rawPayload, &syncedAt)
	if err != nil {
		return domain.Tweet{}, err
	}
	if t.CapturedAt, err = time.Parse(time.RFC3339Nano, capturedAt); err != nil {
		return domain.Tweet{}, fmt.Errorf("разбор captured_at: %w", err)
	}
	if ts, ok := parseNullTime(originalAt); ok {
		t.OriginalCreatedAt = ts
	}
	if ts, ok := parseNullTime(syncedAt); ok {
		t.SyncedAt = ts
	}
	if err := json.Unmarshal([]byte(mediaJSON), &t.Media); err != nil {
		return domain.Tweet{}, fmt.Errorf("разбор media_json: %w", err)
	}
	if err := json.Unmarshal([]byte(entitiesJSON), &t.Entities); err != nil {
		return domain.Tweet{}, fmt.Errorf("разбор entities_json: %w", err)
	}
	if err := json.Unmarshal([]byte(engageJSON), &t.Engagement); err != nil {
		return domain.Tweet{}, fmt.Errorf("разбор engagement_json: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
		return domain.Tweet{}, fmt.Errorf("разбор tags_json: %w", err)
	}
	if err := json.Unmarshal([]byte(autoTagsJSON), &t.AutoTags); err != nil {
		return domain.Tweet{}, fmt.Errorf("разбор auto_tags_json: %w", err)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.AutoTags == nil {
		t.AutoTags = []string{}
	}
	if rawPayload.Valid && rawPayload.String != "" {
		t.RawPayload = json.RawMessage(rawPayload.String)
	}
	return t, nil
}

func parseNullTime(v sql.NullString) (*time.Time, bool) {
	if !v.Valid || v.String == "" {
		return nil, false
	}
	ts, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, false
	}
	return &ts, true
}

func formatNullTime(ts *time.Time) any {
	if ts == nil {
		return nil
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

func marshalField(v any, fallback string) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(data)
}

func tweetArgs(t domain.Tweet) []any {
	var rawPayload any
	if len(t.RawPayload) > 0 {
		rawPayload = string(t.RawPayload)
	}
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	autoTags := t.AutoTags
	if autoTags == nil {
		autoTags = []string{}
	}
	return []any{
		t.ID, t.SourcePostID, string(t.Source), t.AuthorHandle, t.AuthorName,
		t.Verified, t.BlueVerified, t.Organization, t.Government,
		t.Text, t.QuotedText, t.QuotedAuthor,
		marshalField(t.Media, "[]"), marshalField(t.Entities, "{}"), marshalField(t.Engagement, "{}"),
		t.CapturedAt.UTC().Format(time.RFC3339Nano), formatNullTime(t.OriginalCreatedAt),
		marshalField(tags, "[]"), marshalField(autoTags, "[]"),
		t.IsAvailable, rawPayload, formatNullTime(t.SyncedAt),
	}
}

// Insert вставляет запись под уникальным индексом (source_post_id, source).
// При конфликте ключа строка не вставляется и возвращается inserted=false.
func (s *SQLite) Insert(ctx context.Context, t domain.Tweet) (bool, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.conn.ExecContext(ctx, `
INSERT INTO tweets (`+tweetColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (source_post_id, source) DO NOTHING
`, tweetArgs(t)...)
	metrics.ObserveStorageRequest("tweets_insert", "tweets", start, err)
	if err != nil {
		return false, fmt.Errorf("вставка записи: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Get возвращает запись по идентификатору.
func (s *SQLite) Get(ctx context.Context, id string) (domain.Tweet, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := s.conn.QueryRowContext(ctx, `SELECT `+tweetColumns+` FROM tweets WHERE id = ?`, id)
	t, err := scanTweet(row)
	metrics.ObserveStorageRequest("tweets_get", "tweets", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Tweet{}, domain.ErrNotFound
	}
	return t, err
}

// GetByDedupKey возвращает запись по ключу дедупликации.
func (s *SQLite) GetByDedupKey(ctx context.Context, sourcePostID string, source domain.Source) (domain.Tweet, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := s.conn.QueryRowContext(ctx, `
SELECT `+tweetColumns+` FROM tweets WHERE source_post_id = ? AND source = ?
`, sourcePostID, string(source))
	t, err := scanTweet(row)
	metrics.ObserveStorageRequest("tweets_get_by_key", "tweets", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Tweet{}, domain.ErrNotFound
	}
	return t, err
}

// ListAll возвращает все записи в порядке вставки.
func (s *SQLite) ListAll(ctx context.Context) ([]domain.Tweet, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, `SELECT `+tweetColumns+` FROM tweets ORDER BY seq`)
	metrics.ObserveStorageRequest("tweets_list_all", "tweets", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка записей: %w", err)
	}
	defer rows.Close()

	var tweets []domain.Tweet
	for rows.Next() {
		t, err := scanTweet(rows)
		if err != nil {
			return nil, err
		}
		tweets = append(tweets, t)
	}
	return tweets, rows.Err()
}

// Save перезаписывает изменяемые поля существующей записи.
// Ключ дедупликации и captured_at через этот путь не меняются.
func (s *SQLite) Save(ctx context.Context, t domain.Tweet) error {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	autoTags := t.AutoTags
	if autoTags == nil {
		autoTags = []string{}
	}
	var rawPayload any
	if len(t.RawPayload) > 0 {
		rawPayload = string(t.RawPayload)
	}

	start := time.Now()
	res, err := s.conn.ExecContext(ctx, `
UPDATE tweets SET
	author_handle = ?, author_name = ?,
	verified = ?, blue_verified = ?, organization = ?, government = ?,
	text = ?, quoted_text = ?, quoted_author = ?,
	media_json = ?, entities_json = ?, engagement_json = ?,
	original_created_at = ?, tags_json = ?, auto_tags_json = ?,
	is_available = ?, raw_payload = ?, synced_at = ?
WHERE id = ?
`, t.AuthorHandle, t.AuthorName,
		t.Verified, t.BlueVerified, t.Organization, t.Government,
		t.Text, t.QuotedText, t.QuotedAuthor,
		marshalField(t.Media, "[]"), marshalField(t.Entities, "{}"), marshalField(t.Engagement, "{}"),
		formatNullTime(t.OriginalCreatedAt), marshalField(tags, "[]"), marshalField(autoTags, "[]"),
		t.IsAvailable, rawPayload, formatNullTime(t.SyncedAt), t.ID)
	metrics.ObserveStorageRequest("tweets_save", "tweets", start, err)
	if err != nil {
		return fmt.Errorf("сохранение записи: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete удаляет запись. Возвращает false, если записи не было.
func (s *SQLite) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.conn.ExecContext(ctx, `DELETE FROM tweets WHERE id = ?`, id)
	metrics.ObserveStorageRequest("tweets_delete", "tweets", start, err)
	if err != nil {
		return false, fmt.Errorf("удаление записи: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpsertCategory сохраняет категорию.
func (s *SQLite) UpsertCategory(ctx context.Context, category domain.Category) error {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO categories (name, keywords_json) VALUES (?, ?)
ON CONFLICT (name) DO UPDATE SET keywords_json = excluded.keywords_json
`, category.Name, marshalField(category.Keywords, "[]"))
	metrics.ObserveStorageRequest("categories_upsert", "categories", start, err)
	if err != nil {
		return fmt.Errorf("сохранение категории: %w", err)
	}
	return nil
}

// ListCategories возвращает пользовательские категории.
func (s *SQLite) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, `SELECT name, keywords_json FROM categories ORDER BY name`)
	metrics.ObserveStorageRequest("categories_list", "categories", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка категорий: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var (
			c            domain.Category
			keywordsJSON string
		)
		if err := rows.Scan(&c.Name, &keywordsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(keywordsJSON), &c.Keywords); err != nil {
			return nil, fmt.Errorf("разбор keywords_json: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// DeleteCategory удаляет категорию по имени.
func (s *SQLite) DeleteCategory(ctx context.Context, name string) (bool, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.conn.ExecContext(ctx, `DELETE FROM categories WHERE name = ?`, name)
	metrics.ObserveStorageRequest("categories_delete", "categories", start, err)
	if err != nil {
		return false, fmt.Errorf("удаление категории: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// SaveSearch сохраняет поиск.
func (s *SQLite) SaveSearch(ctx context.Context, search domain.SavedSearch) error {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO saved_searches (id, name, query, filters_json, created_at)
VALUES (?,?,?,?,?)
ON CONFLICT (id) DO UPDATE SET name = excluded.name, query = excluded.query, filters_json = excluded.filters_json
`, search.ID, search.Name, search.Query, marshalField(search.Filters, "{}"),
		search.CreatedAt.UTC().Format(time.RFC3339Nano))
	metrics.ObserveStorageRequest("saved_searches_save", "saved_searches", start, err)
	if err != nil {
		return fmt.Errorf("сохранение поиска: %w", err)
	}
	return nil
}

// ListSearches возвращает сохранённые поиски.
func (s *SQLite) ListSearches(ctx context.Context) ([]domain.SavedSearch, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, `
SELECT id, name, query, filters_json, created_at FROM saved_searches ORDER BY created_at DESC
`)
	metrics.ObserveStorageRequest("saved_searches_list", "saved_searches", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка поисков: %w", err)
	}
	defer rows.Close()

	var searches []domain.SavedSearch
	for rows.Next() {
		var (
			search      domain.SavedSearch
			filtersJSON string
			createdAt   string
		)
		if err := rows.Scan(&search.ID, &search.Name, &search.Query, &filtersJSON, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(filtersJSON), &search.Filters); err != nil {
			return nil, fmt.Errorf("разбор filters_json: %w", err)
		}
		if search.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("разбор created_at: %w", err)
		}
		searches = append(searches, search)
	}
	return searches, rows.Err()
}

// DeleteSearch удаляет сохранённый поиск.
func (s *SQLite) DeleteSearch(ctx context.Context, id string) (bool, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.conn.ExecContext(ctx, `DELETE FROM saved_searches WHERE id = ?`, id)
	metrics.ObserveStorageRequest("saved_searches_delete", "saved_searches", start, err)
	if err != nil {
		return false, fmt.Errorf("удаление поиска: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetSettings возвращает настройки. Для пустого хранилища возвращает "{}".
func (s *SQLite) GetSettings(ctx context.Context) (json.RawMessage, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	var data string
	start := time.Now()
	err := s.conn.QueryRowContext(ctx, `SELECT data FROM settings WHERE id = 1`).Scan(&data)
	metrics.ObserveStorageRequest("settings_get", "settings", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return json.RawMessage(`{}`), nil
	}
	if err != nil {
		return nil, fmt.Errorf("чтение настроек: %w", err)
	}
	return json.RawMessage(data), nil
}

// PutSettings перезаписывает настройки целиком.
func (s *SQLite) PutSettings(ctx context.Context, raw json.RawMessage) error {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	start := time.Now()
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO settings (id, data) VALUES (1, ?)
ON CONFLICT (id) DO UPDATE SET data = excluded.data
`, string(raw))
	metrics.ObserveStorageRequest("settings_put", "settings", start, err)
	if err != nil {
		return fmt.Errorf("сохранение настроек: %w", err)
	}
	return nil
}
