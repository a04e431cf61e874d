package domain

import (
	"encoding/json"
	"time"
)

// Source описывает происхождение захваченного ретвита.
type Source string

// Поддерживаемые источники записи.
const (
	SourceBrowser Source = "browser"
	SourceArchive Source = "archive"
	SourceCSV     Source = "csv"
	SourceNitter  Source = "nitter"
	SourceManual  Source = "manual"
)

// KnownSource сообщает, входит ли источник в поддерживаемое множество.
func KnownSource(s Source) bool {
	switch s {
	case SourceBrowser, SourceArchive, SourceCSV, SourceNitter, SourceManual:
		return true
	}
	return false
}

// MediaKind описывает тип вложения.
type MediaKind string

// Поддерживаемые типы вложений.
const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaGIF   MediaKind = "gif"
)

// MediaItem описывает одно вложение поста.
type MediaItem struct {
	Kind     MediaKind `json:"kind"`
	URL      string    `json:"url"`
	ThumbURL string    `json:"thumbUrl,omitempty"`
}

// Entities содержит извлечённые из текста сущности.
type Entities struct {
	URLs     []string `json:"urls,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`
	Mentions []string `json:"mentions,omitempty"`
}

// Engagement хранит счётчики вовлечённости. Только для отображения,
// на ранжирование и фильтры не влияет.
type Engagement struct {
	Replies   int64 `json:"replies,omitempty"`
	Retweets  int64 `json:"retweets,omitempty"`
	Likes     int64 `json:"likes,omitempty"`
	Views     int64 `json:"views,omitempty"`
	Bookmarks int64 `json:"bookmarks,omitempty"`
}

// Tweet представляет одну захваченную запись.
// Пара (SourcePostID, Source) уникальна во всей коллекции.
type Tweet struct {
	ID           string `json:"id"`
	SourcePostID string `json:"sourcePostId"`
	Source       Source `json:"source"`

	AuthorHandle string `json:"authorHandle,omitempty"`
	AuthorName   string `json:"authorName,omitempty"`
	Verified     bool   `json:"verified,omitempty"`
	BlueVerified bool   `json:"blueVerified,omitempty"`
	Organization bool   `json:"organization,omitempty"`
	Government   bool   `json:"government,omitempty"`

	Text         string `json:"text"`
	QuotedText   string `json:"quotedText,omitempty"`
	QuotedAuthor string `json:"quotedAuthor,omitempty"`

	Media      []MediaItem `json:"media,omitempty"`
	Entities   Entities    `json:"entities,omitempty"`
	Engagement Engagement  `json:"engagementCounts,omitempty"`

	CapturedAt        time.Time  `json:"capturedAt"`
	OriginalCreatedAt *time.Time `json:"originalCreatedAt,omitempty"`

	Tags     []string `json:"tags"`
	AutoTags []string `json:"autoTags"`

	IsAvailable bool            `json:"isAvailable"`
	RawPayload  json.RawMessage `json:"rawPayload,omitempty"`
	SyncedAt    *time.Time      `json:"syncedAt,omitempty"`
}

// HasMedia сообщает, есть ли у записи вложения.
func (t Tweet) HasMedia() bool { return len(t.Media) > 0 }

// EffectiveTags возвращает объединение ручных и автоматических тегов.
func (t Tweet) EffectiveTags() []string {
	seen := make(map[string]struct{}, len(t.Tags)+len(t.AutoTags))
	out := make([]string, 0, len(t.Tags)+len(t.AutoTags))
	for _, set := range [][]string{t.Tags, t.AutoTags} {
		for _, tag := range set {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// TweetPatch описывает частичное обновление записи.
// Идентификационные поля через этот путь не меняются.
type TweetPatch struct {
	AuthorHandle      *string     `json:"authorHandle,omitempty"`
	AuthorName        *string     `json:"authorName,omitempty"`
	Text              *string     `json:"text,omitempty"`
	QuotedText        *string     `json:"quotedText,omitempty"`
	QuotedAuthor      *string     `json:"quotedAuthor,omitempty"`
	Media             []MediaItem `json:"media,omitempty"`
	Entities          *Entities   `json:"entities,omitempty"`
	Engagement        *Engagement `json:"engagementCounts,omitempty"`
	OriginalCreatedAt *time.Time  `json:"originalCreatedAt,omitempty"`
	IsAvailable       *bool       `json:"isAvailable,omitempty"`
	SyncedAt          *time.Time  `json:"syncedAt,omitempty"`
}

// CreateResult — помеченный результат вставки: либо новая запись,
// либо признак дубликата по ключу (SourcePostID, Source).
type CreateResult struct {
	Tweet     Tweet
	Duplicate bool
}

// BulkCreateResult агрегирует итог пакетной вставки.
type BulkCreateResult struct {
	CreatedCount   int     `json:"createdCount"`
	DuplicateCount int     `json:"duplicateCount"`
	Created        []Tweet `json:"created"`
}

// TweetFilter описывает предикат выборки записей.
// Пустые поля не ограничивают выборку.
type TweetFilter struct {
	Tags     []string   `json:"tags,omitempty"`
	DateFrom *time.Time `json:"dateFrom,omitempty"`
	DateTo   *time.Time `json:"dateTo,omitempty"`
	Source   Source     `json:"source,omitempty"`
	HasMedia *bool      `json:"hasMedia,omitempty"`
	Author   string     `json:"author,omitempty"`
}

// PageRequest описывает параметры страницы.
type PageRequest struct {
	Page          int    `json:"page"`
	PageSize      int    `json:"pageSize"`
	SortField     string `json:"sortField"`
	SortDirection string `json:"sortDirection"`
}

// Page содержит страницу записей.
type Page struct {
	Items      []Tweet `json:"items"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalPages int     `json:"totalPages"`
}

// Stats агрегирует статистику коллекции.
type Stats struct {
	Total    int            `json:"total"`
	Today    int            `json:"today"`
	BySource map[Source]int `json:"bySource"`
	ByTag    map[string]int `json:"byTag"`
	Unsynced int            `json:"unsynced"`
}

// Category — именованный набор ключевых слов для автотегов.
type Category struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// SavedSearch — сохранённая пара (запрос, фильтры).
type SavedSearch struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Query     string      `json:"query"`
	Filters   TweetFilter `json:"filters"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ImportFormat определяет формат импортируемых данных.
type ImportFormat string

// Поддерживаемые форматы импорта.
const (
	FormatArchive ImportFormat = "archive"
	FormatCSV     ImportFormat = "csv"
	FormatFeed    ImportFormat = "feed"
)

// ImportReport — итог одного импорта.
type ImportReport struct {
	AddedCount      int `json:"addedCount"`
	DuplicateCount  int `json:"duplicateCount"`
	TotalCandidates int `json:"totalCandidates"`
}

// ExportBundle — переносимый срез всей коллекции.
type ExportBundle struct {
	Version       int             `json:"version"`
	ExportedAt    time.Time       `json:"exportedAt"`
	Records       []Tweet         `json:"records"`
	Settings      json.RawMessage `json:"settings"`
	Categories    []Category      `json:"categories"`
	SavedSearches []SavedSearch   `json:"savedSearches"`
}
