package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"rt-keeper/internal/domain"
)

type stubRepo struct {
	tweets     []domain.Tweet
	categories []domain.Category
	searches   []domain.SavedSearch
	settings   json.RawMessage
}

func (s *stubRepo) Insert(_ context.Context, tweet domain.Tweet) (bool, error) {
	for _, existing := range s.tweets {
		if existing.SourcePostID == tweet.SourcePostID && existing.Source == tweet.Source {
			return false, nil
		}
	}
	s.tweets = append(s.tweets, tweet)
	return true, nil
}

func (s *stubRepo) Get(_ context.Context, id string) (domain.Tweet, error) {
	for _, t := range s.tweets {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Tweet{}, domain.ErrNotFound
}

func (s *stubRepo) GetByDedupKey(_ context.Context, sourcePostID string, source domain.Source) (domain.Tweet, error) {
	for _, t := range s.tweets {
		if t.SourcePostID == sourcePostID && t.Source == source {
			return t, nil
		}
	}
	return domain.Tweet{}, domain.ErrNotFound
}

func (s *stubRepo) ListAll(_ context.Context) ([]domain.Tweet, error) {
	out := make([]domain.Tweet, len(s.tweets))
	copy(out, s.tweets)
	return out, nil
}

func (s *stubRepo) Save(_ context.Context, tweet domain.Tweet) error {
	for i, t := range s.tweets {
		if t.ID == tweet.ID {
			s.tweets[i] = tweet
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *stubRepo) Delete(_ context.Context, id string) (bool, error) {
	for i, t := range s.tweets {
		if t.ID == id {
			s.tweets = append(s.tweets[:i], s.tweets[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) UpsertCategory(_ context.Context, category domain.Category) error {
	for i, c := range s.categories {
		if c.Name == category.Name {
			s.categories[i] = category
			return nil
		}
	}
	s.categories = append(s.categories, category)
	return nil
}

func (s *stubRepo) ListCategories(_ context.Context) ([]domain.Category, error) {
	return s.categories, nil
}

func (s *stubRepo) DeleteCategory(_ context.Context, name string) (bool, error) {
	for i, c := range s.categories {
		if c.Name == name {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) SaveSearch(_ context.Context, search domain.SavedSearch) error {
	s.searches = append(s.searches, search)
	return nil
}

func (s *stubRepo) ListSearches(_ context.Context) ([]domain.SavedSearch, error) {
	return s.searches, nil
}

func (s *stubRepo) DeleteSearch(_ context.Context, id string) (bool, error) {
	for i, search := range s.searches {
		if search.ID == id {
			s.searches = append(s.searches[:i], s.searches[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) GetSettings(_ context.Context) (json.RawMessage, error) {
	if s.settings == nil {
		return json.RawMessage(`{}`), nil
	}
	return s.settings, nil
}

func (s *stubRepo) PutSettings(_ context.Context, raw json.RawMessage) error {
	s.settings = raw
	return nil
}

func newTestService(repo *stubRepo) *Service {
	return NewService(repo, repo, repo, repo)
}

func TestCreateDefaultsAndDedup(t *testing.T) {
	repo := &stubRepo{}
	service := newTestService(repo)
	ctx := context.Background()

	res, err := service.Create(ctx, domain.Tweet{SourcePostID: "100", Text: "привет"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Duplicate {
		t.Fatalf("первая вставка не должна быть дубликатом")
	}
	if res.Tweet.ID == "" {
		t.Fatalf("ожидали сгенерированный идентификатор")
	}
	if res.Tweet.Source != domain.SourceManual {
		t.Fatalf("ожидали источник manual по умолчанию, получили %q", res.Tweet.Source)
	}
	if res.Tweet.CapturedAt.IsZero() {
		t.Fatalf("ожидали заполненный captured_at")
	}
	if !res.Tweet.IsAvailable {
		t.Fatalf("новая запись должна быть доступной")
	}
	if res.Tweet.Tags == nil || res.Tweet.AutoTags == nil {
		t.Fatalf("срезы тегов не должны быть nil")
	}

	dup, err := service.Create(ctx, domain.Tweet{SourcePostID: "100", Source: domain.SourceManual})
	if err != nil {
		t.Fatalf("дубликат не должен быть ошибкой: %v", err)
	}
	if !dup.Duplicate {
		t.Fatalf("повторная вставка того же ключа должна быть дубликатом")
	}

	other, err := service.Create(ctx, domain.Tweet{SourcePostID: "100", Source: domain.SourceArchive})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if other.Duplicate {
		t.Fatalf("тот же идентификатор из другого источника — не дубликат")
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	service := newTestService(&stubRepo{})
	ctx := context.Background()

	if _, err := service.Create(ctx, domain.Tweet{}); !errors.Is(err, domain.ErrInvalidFormat) {
		t.Fatalf("ожидали ErrInvalidFormat для пустого sourcePostId, получили %v", err)
	}
	if _, err := service.Create(ctx, domain.Tweet{SourcePostID: "1", Source: "telegram"}); !errors.Is(err, domain.ErrInvalidFormat) {
		t.Fatalf("ожидали ErrInvalidFormat для неизвестного источника, получили %v", err)
	}
}

func TestCreateManyCountsOutcomes(t *testing.T) {
	service := newTestService(&stubRepo{})
	ctx := context.Background()

	candidates := []domain.Tweet{
		{SourcePostID: "1", Source: domain.SourceBrowser, Text: "a"},
		{SourcePostID: "1", Source: domain.SourceBrowser, Text: "a again"},
		{SourcePostID: "2", Source: domain.SourceBrowser, Text: "b"},
		{Text: "без идентификатора"},
	}
	res, err := service.CreateMany(ctx, candidates)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.CreatedCount != 2 {
		t.Fatalf("ожидали 2 вставки, получили %d", res.CreatedCount)
	}
	if res.DuplicateCount != 2 {
		t.Fatalf("ожидали 2 пропуска, получили %d", res.DuplicateCount)
	}
	if len(res.Created) != 2 {
		t.Fatalf("ожидали 2 созданные записи, получили %d", len(res.Created))
	}
}

func TestSetTagsNormalizes(t *testing.T) {
	repo := &stubRepo{}
	service := newTestService(repo)
	ctx := context.Background()

	res, err := service.Create(ctx, domain.Tweet{SourcePostID: "1", AutoTags: []string{"ai"}})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	updated, err := service.SetTags(ctx, res.Tweet.ID, []string{" go ", "go", "", "news"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(updated.Tags) != 2 || updated.Tags[0] != "go" || updated.Tags[1] != "news" {
		t.Fatalf("ожидали нормализованные теги [go news], получили %v", updated.Tags)
	}
	if len(updated.AutoTags) != 1 || updated.AutoTags[0] != "ai" {
		t.Fatalf("автотеги не должны меняться, получили %v", updated.AutoTags)
	}
}

func TestBulkAdjustTagsRemoveThenAdd(t *testing.T) {
	repo := &stubRepo{}
	service := newTestService(repo)
	ctx := context.Background()

	res, err := service.Create(ctx, domain.Tweet{SourcePostID: "1", Tags: []string{"old", "keep"}})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	updated, err := service.BulkAdjustTags(ctx, []string{res.Tweet.ID, "нет-такого"}, []string{"new", "keep"}, []string{"old"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if updated != 1 {
		t.Fatalf("ожидали 1 обновлённую запись, получили %d", updated)
	}

	got, err := service.Get(ctx, res.Tweet.ID)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "keep" || got.Tags[1] != "new" {
		t.Fatalf("ожидали теги [keep new], получили %v", got.Tags)
	}
}

func TestListPagePaginatesAndSorts(t *testing.T) {
	repo := &stubRepo{}
	service := newTestService(repo)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := service.Create(ctx, domain.Tweet{
			SourcePostID: string(rune('a' + i)),
			Source:       domain.SourceBrowser,
			CapturedAt:   base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}

	page, err := service.ListPage(ctx, domain.PageRequest{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if page.Total != 5 || page.TotalPages != 3 {
		t.Fatalf("ожидали total=5 totalPages=3, получили %d/%d", page.Total, page.TotalPages)
	}
	if len(page.Items) != 2 {
		t.Fatalf("ожидали 2 элемента, получили %d", len(page.Items))
	}
	// По умолчанию сортировка по captured_at по убыванию.
	if !page.Items[0].CapturedAt.After(page.Items[1].CapturedAt) {
		t.Fatalf("ожидали убывающий порядок по captured_at")
	}

	last, err := service.ListPage(ctx, domain.PageRequest{Page: 3, PageSize: 2})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(last.Items) != 1 {
		t.Fatalf("ожидали 1 элемент на последней странице, получили %d", len(last.Items))
	}

	asc, err := service.ListPage(ctx, domain.PageRequest{Page: 1, PageSize: 5, SortDirection: "asc"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !asc.Items[0].CapturedAt.Before(asc.Items[4].CapturedAt) {
		t.Fatalf("ожидали возрастающий порядок по captured_at")
	}
}

func TestStatsAggregates(t *testing.T) {
	repo := &stubRepo{}
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	service := newTestService(repo).WithClock(func() time.Time { return now })
	ctx := context.Background()

	synced := now.Add(-time.Hour)
	seed := []domain.Tweet{
		{SourcePostID: "1", Source: domain.SourceBrowser, CapturedAt: now.Add(-time.Hour), Tags: []string{"go"}, SyncedAt: &synced},
		{SourcePostID: "2", Source: domain.SourceBrowser, CapturedAt: now.Add(-48 * time.Hour), Tags: []string{"go"}, AutoTags: []string{"ai"}},
		{SourcePostID: "3", Source: domain.SourceArchive, CapturedAt: now.Add(-48 * time.Hour), AutoTags: []string{"go"}},
	}
	for _, candidate := range seed {
		if _, err := service.Create(ctx, candidate); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}

	stats, err := service.Stats(ctx)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("ожидали total=3, получили %d", stats.Total)
	}
	if stats.Today != 1 {
		t.Fatalf("ожидали today=1, получили %d", stats.Today)
	}
	if stats.BySource[domain.SourceBrowser] != 2 || stats.BySource[domain.SourceArchive] != 1 {
		t.Fatalf("неожиданные корзины источников: %v", stats.BySource)
	}
	if stats.ByTag["go"] != 3 || stats.ByTag["ai"] != 1 {
		t.Fatalf("неожиданные теговые корзины: %v", stats.ByTag)
	}
	if stats.Unsynced != 2 {
		t.Fatalf("ожидали 2 несинхронизированные записи, получили %d", stats.Unsynced)
	}
}

func TestListCategoriesFallsBackToDefaults(t *testing.T) {
	repo := &stubRepo{}
	service := newTestService(repo)
	ctx := context.Background()

	categories, err := service.ListCategories(ctx)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(categories) == 0 {
		t.Fatalf("ожидали встроенные категории")
	}

	if _, err := service.UpsertCategory(ctx, domain.Category{Name: "go", Keywords: []string{"golang"}}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	categories, err = service.ListCategories(ctx)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// Пользовательский набор вытесняет встроенный целиком.
	if len(categories) != 1 || categories[0].Name != "go" {
		t.Fatalf("ожидали только пользовательскую категорию, получили %v", categories)
	}
}

func TestUpdateAppliesPatch(t *testing.T) {
	repo := &stubRepo{}
	service := newTestService(repo)
	ctx := context.Background()

	res, err := service.Create(ctx, domain.Tweet{SourcePostID: "1", Text: "старый текст"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	newText := "новый текст"
	unavailable := false
	updated, err := service.Update(ctx, res.Tweet.ID, domain.TweetPatch{Text: &newText, IsAvailable: &unavailable})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if updated.Text != newText {
		t.Fatalf("ожидали обновлённый текст, получили %q", updated.Text)
	}
	if updated.IsAvailable {
		t.Fatalf("ожидали isAvailable=false")
	}
	if updated.SourcePostID != "1" {
		t.Fatalf("идентификационные поля не должны меняться")
	}

	if _, err := service.Update(ctx, "нет-такого", domain.TweetPatch{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
}

func TestExportAllCollectsEverything(t *testing.T) {
	repo := &stubRepo{}
	service := newTestService(repo)
	ctx := context.Background()

	if _, err := service.Create(ctx, domain.Tweet{SourcePostID: "1"}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := service.CreateSavedSearch(ctx, domain.SavedSearch{Name: "gpt"}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := service.PutSettings(ctx, json.RawMessage(`{"theme":"dark"}`)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	bundle, err := service.ExportAll(ctx)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if bundle.Version != 1 {
		t.Fatalf("ожидали version=1, получили %d", bundle.Version)
	}
	if len(bundle.Records) != 1 || len(bundle.SavedSearches) != 1 {
		t.Fatalf("неполный срез: %d записей, %d поисков", len(bundle.Records), len(bundle.SavedSearches))
	}
	if string(bundle.Settings) != `{"theme":"dark"}` {
		t.Fatalf("ожидали настройки в срезе, получили %s", bundle.Settings)
	}
}
