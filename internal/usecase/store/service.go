package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"rt-keeper/internal/domain"
)

// Значения по умолчанию для постраничной выборки.
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Поля сортировки постраничной выборки.
const (
	SortByCapturedAt        = "capturedAt"
	SortByOriginalCreatedAt = "originalCreatedAt"
	SortByAuthorHandle      = "authorHandle"
	SortByAuthorName        = "authorName"
	SortByText              = "text"
	SortBySource            = "source"
)

// Service реализует операции локального хранилища записей.
type Service struct {
	tweets     domain.TweetRepo
	categories domain.CategoryRepo
	searches   domain.SavedSearchRepo
	settings   domain.SettingsRepo
	now        func() time.Time
}

// NewService создаёт сервис хранилища.
func NewService(tweets domain.TweetRepo, categories domain.CategoryRepo, searches domain.SavedSearchRepo, settings domain.SettingsRepo) *Service {
	return &Service{
		tweets:     tweets,
		categories: categories,
		searches:   searches,
		settings:   settings,
		now:        time.Now,
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create заполняет значения по умолчанию и вставляет запись под
// ограничением ключа (SourcePostID, Source). Коллизия ключа — ожидаемый
// исход, а не ошибка: возвращается CreateResult с Duplicate=true.
func (s *Service) Create(ctx context.Context, candidate domain.Tweet) (domain.CreateResult, error) {
	if strings.TrimSpace(candidate.SourcePostID) == "" {
		return domain.CreateResult{}, fmt.Errorf("%w: пустой sourcePostId", domain.ErrInvalidFormat)
	}
	if candidate.Source == "" {
		candidate.Source = domain.SourceManual
	}
	if !domain.KnownSource(candidate.Source) {
		return domain.CreateResult{}, fmt.Errorf("%w: неизвестный источник %q", domain.ErrInvalidFormat, candidate.Source)
	}
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	if candidate.CapturedAt.IsZero() {
		candidate.CapturedAt = s.now().UTC()
	}
	if candidate.Tags == nil {
		candidate.Tags = []string{}
	}
	if candidate.AutoTags == nil {
		candidate.AutoTags = []string{}
	}
	candidate.IsAvailable = true

	inserted, err := s.tweets.Insert(ctx, candidate)
	if err != nil {
		return domain.CreateResult{}, err
	}
	if !inserted {
		return domain.CreateResult{Duplicate: true}, nil
	}
	return domain.CreateResult{Tweet: candidate}, nil
}

// CreateMany применяет Create к каждому кандидату независимо.
// Невалидный кандидат считается пропуском и не прерывает пакет;
// пакет прерывает только ошибка хранилища.
func (s *Service) CreateMany(ctx context.Context, candidates []domain.Tweet) (domain.BulkCreateResult, error) {
	result := domain.BulkCreateResult{Created: []domain.Tweet{}}
	for _, candidate := range candidates {
		res, err := s.Create(ctx, candidate)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidFormat) {
				result.DuplicateCount++
				continue
			}
			return domain.BulkCreateResult{}, err
		}
		if res.Duplicate {
			result.DuplicateCount++
			continue
		}
		result.CreatedCount++
		result.Created = append(result.Created, res.Tweet)
	}
	return result, nil
}

// Get возвращает запись по идентификатору.
func (s *Service) Get(ctx context.Context, id string) (domain.Tweet, error) {
	return s.tweets.Get(ctx, id)
}

// GetByDedupKey возвращает запись по ключу дедупликации.
func (s *Service) GetByDedupKey(ctx context.Context, sourcePostID string, source domain.Source) (domain.Tweet, error) {
	return s.tweets.GetByDedupKey(ctx, sourcePostID, source)
}

// GetAll материализует всю коллекцию в порядке вставки.
func (s *Service) GetAll(ctx context.Context) ([]domain.Tweet, error) {
	return s.tweets.ListAll(ctx)
}

// Update накладывает частичное обновление на существующую запись.
func (s *Service) Update(ctx context.Context, id string, patch domain.TweetPatch) (domain.Tweet, error) {
	t, err := s.tweets.Get(ctx, id)
	if err != nil {
		return domain.Tweet{}, err
	}
	applyPatch(&t, patch)
	if err := s.tweets.Save(ctx, t); err != nil {
		return domain.Tweet{}, err
	}
	return t, nil
}

func applyPatch(t *domain.Tweet, patch domain.TweetPatch) {
	if patch.AuthorHandle != nil {
		t.AuthorHandle = *patch.AuthorHandle
	}
	if patch.AuthorName != nil {
		t.AuthorName = *patch.AuthorName
	}
	if patch.Text != nil {
		t.Text = *patch.Text
	}
	if patch.QuotedText != nil {
		t.QuotedText = *patch.QuotedText
	}
	if patch.QuotedAuthor != nil {
		t.QuotedAuthor = *patch.QuotedAuthor
	}
	if patch.Media != nil {
		t.Media = patch.Media
	}
	if patch.Entities != nil {
		t.Entities = *patch.Entities
	}
	if patch.Engagement != nil {
		t.Engagement = *patch.Engagement
	}
	if patch.OriginalCreatedAt != nil {
		t.OriginalCreatedAt = patch.OriginalCreatedAt
	}
	if patch.IsAvailable != nil {
		t.IsAvailable = *patch.IsAvailable
	}
	if patch.SyncedAt != nil {
		t.SyncedAt = patch.SyncedAt
	}
}

// SetTags заменяет ручной набор тегов целиком.
// Автотеги при этом не затрагиваются.
func (s *Service) SetTags(ctx context.Context, id string, tags []string) (domain.Tweet, error) {
	t, err := s.tweets.Get(ctx, id)
	if err != nil {
		return domain.Tweet{}, err
	}
	t.Tags = normalizeTags(tags)
	if err := s.tweets.Save(ctx, t); err != nil {
		return domain.Tweet{}, err
	}
	return t, nil
}

// BulkAdjustTags для каждой записи сначала убирает теги из remove,
// затем добавляет отсутствующие из add. Недостающие идентификаторы
// пропускаются молча и в счётчик не попадают.
func (s *Service) BulkAdjustTags(ctx context.Context, ids, add, remove []string) (int, error) {
	updated := 0
	for _, id := range ids {
		t, err := s.tweets.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return updated, err
		}
		t.Tags = adjustTags(t.Tags, add, remove)
		if err := s.tweets.Save(ctx, t); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func adjustTags(tags, add, remove []string) []string {
	out := make([]string, 0, len(tags)+len(add))
	for _, tag := range tags {
		removed := false
		for _, r := range remove {
			if tag == r {
				removed = true
				break
			}
		}
		if !removed {
			out = append(out, tag)
		}
	}
	for _, a := range add {
		present := false
		for _, tag := range out {
			if tag == a {
				present = true
				break
			}
		}
		if !present {
			out = append(out, a)
		}
	}
	return out
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Delete удаляет запись безвозвратно.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	return s.tweets.Delete(ctx, id)
}

// DeleteMany удаляет записи пакетом; ошибки по отдельным записям
// не прерывают пакет и просто не увеличивают счётчик.
func (s *Service) DeleteMany(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	for _, id := range ids {
		ok, err := s.tweets.Delete(ctx, id)
		if err != nil {
			continue
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

// ListPage загружает все записи, сортирует со стабильным полным порядком
// (равные значения остаются в порядке вставки) и нарезает страницу.
func (s *Service) ListPage(ctx context.Context, req domain.PageRequest) (domain.Page, error) {
	tweets, err := s.tweets.ListAll(ctx)
	if err != nil {
		return domain.Page{}, err
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = DefaultPageSize
	}
	if req.PageSize > MaxPageSize {
		req.PageSize = MaxPageSize
	}
	if req.SortField == "" {
		req.SortField = SortByCapturedAt
	}
	desc := req.SortDirection != "asc"

	sortTweets(tweets, req.SortField, desc)

	total := len(tweets)
	totalPages := (total + req.PageSize - 1) / req.PageSize
	start := (req.Page - 1) * req.PageSize
	if start > total {
		start = total
	}
	end := start + req.PageSize
	if end > total {
		end = total
	}

	items := tweets[start:end]
	if items == nil {
		items = []domain.Tweet{}
	}
	return domain.Page{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
	}, nil
}

// sortTweets сортирует записи по полю. Отсутствующие значения
// считаются минимальными.
func sortTweets(tweets []domain.Tweet, field string, desc bool) {
	less := func(a, b domain.Tweet) int { return compareField(a, b, field) }
	sort.SliceStable(tweets, func(i, j int) bool {
		cmp := less(tweets[i], tweets[j])
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func compareField(a, b domain.Tweet, field string) int {
	switch field {
	case SortByOriginalCreatedAt:
		return compareTimePtr(a.OriginalCreatedAt, b.OriginalCreatedAt)
	case SortByAuthorHandle:
		return strings.Compare(a.AuthorHandle, b.AuthorHandle)
	case SortByAuthorName:
		return strings.Compare(a.AuthorName, b.AuthorName)
	case SortByText:
		return strings.Compare(a.Text, b.Text)
	case SortBySource:
		return strings.Compare(string(a.Source), string(b.Source))
	default:
		return a.CapturedAt.Compare(b.CapturedAt)
	}
}

func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

// Filter возвращает записи, удовлетворяющие предикату.
func (s *Service) Filter(ctx context.Context, filter domain.TweetFilter) ([]domain.Tweet, error) {
	tweets, err := s.tweets.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Tweet, 0, len(tweets))
	for _, t := range tweets {
		if filter.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Stats считает агрегаты по коллекции. Запись с несколькими тегами
// попадает в каждую теговую корзину по одному разу.
func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	tweets, err := s.tweets.ListAll(ctx)
	if err != nil {
		return domain.Stats{}, err
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats := domain.Stats{
		Total:    len(tweets),
		BySource: map[domain.Source]int{},
		ByTag:    map[string]int{},
	}
	for _, t := range tweets {
		if !t.CapturedAt.In(now.Location()).Before(midnight) {
			stats.Today++
		}
		stats.BySource[t.Source]++
		for _, tag := range t.EffectiveTags() {
			stats.ByTag[tag]++
		}
		if t.SyncedAt == nil {
			stats.Unsynced++
		}
	}
	return stats, nil
}

// ListCategories возвращает пользовательские категории, а при их полном
// отсутствии — встроенный набор по умолчанию целиком, без слияния.
func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return domain.DefaultCategories(), nil
	}
	return categories, nil
}

// UpsertCategory сохраняет пользовательскую категорию.
func (s *Service) UpsertCategory(ctx context.Context, category domain.Category) (domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return domain.Category{}, fmt.Errorf("%w: пустое имя категории", domain.ErrInvalidFormat)
	}
	if category.Keywords == nil {
		category.Keywords = []string{}
	}
	if err := s.categories.UpsertCategory(ctx, category); err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

// DeleteCategory удаляет категорию по имени.
func (s *Service) DeleteCategory(ctx context.Context, name string) (bool, error) {
	return s.categories.DeleteCategory(ctx, name)
}

// CreateSavedSearch сохраняет новую пару (запрос, фильтры).
func (s *Service) CreateSavedSearch(ctx context.Context, search domain.SavedSearch) (domain.SavedSearch, error) {
	search.Name = strings.TrimSpace(search.Name)
	if search.Name == "" {
		return domain.SavedSearch{}, fmt.Errorf("%w: пустое имя поиска", domain.ErrInvalidFormat)
	}
	if search.ID == "" {
		search.ID = uuid.NewString()
	}
	if search.CreatedAt.IsZero() {
		search.CreatedAt = s.now().UTC()
	}
	if err := s.searches.SaveSearch(ctx, search); err != nil {
		return domain.SavedSearch{}, err
	}
	return search, nil
}

// ListSavedSearches возвращает сохранённые поиски.
func (s *Service) ListSavedSearches(ctx context.Context) ([]domain.SavedSearch, error) {
	return s.searches.ListSearches(ctx)
}

// DeleteSavedSearch удаляет сохранённый поиск.
func (s *Service) DeleteSavedSearch(ctx context.Context, id string) (bool, error) {
	return s.searches.DeleteSearch(ctx, id)
}

// GetSettings возвращает настройки как непрозрачный JSON.
func (s *Service) GetSettings(ctx context.Context) ([]byte, error) {
	return s.settings.GetSettings(ctx)
}

// PutSettings перезаписывает настройки.
func (s *Service) PutSettings(ctx context.Context, raw []byte) error {
	return s.settings.PutSettings(ctx, raw)
}

// ExportAll собирает переносимый срез всей коллекции.
func (s *Service) ExportAll(ctx context.Context) (domain.ExportBundle, error) {
	tweets, err := s.tweets.ListAll(ctx)
	if err != nil {
		return domain.ExportBundle{}, err
	}
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return domain.ExportBundle{}, err
	}
	searches, err := s.searches.ListSearches(ctx)
	if err != nil {
		return domain.ExportBundle{}, err
	}
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return domain.ExportBundle{}, err
	}
	if tweets == nil {
		tweets = []domain.Tweet{}
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	if searches == nil {
		searches = []domain.SavedSearch{}
	}
	return domain.ExportBundle{
		Version:       1,
		ExportedAt:    s.now().UTC(),
		Records:       tweets,
		Settings:      settings,
		Categories:    categories,
		SavedSearches: searches,
	}, nil
}
