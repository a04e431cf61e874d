package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rt-keeper/internal/domain"
	"rt-keeper/internal/infra/metrics"
	"rt-keeper/internal/usecase/store"
	"rt-keeper/internal/usecase/tags"
)

// parser — стратегия разбора одного формата импорта.
// Ошибка разбора фатальна для вызова и случается до любых
// мутаций хранилища.
type parser interface {
	Format() domain.ImportFormat
	Parse(payload []byte) ([]domain.Tweet, error)
}

// Service прогоняет внешние данные через общий конвейер:
// разбор → отбор ретвитов → автотеги → пакетная вставка.
type Service struct {
	store   *store.Service
	fetcher domain.FeedFetcher
	cache   domain.Cache
	onceTTL time.Duration
	log     zerolog.Logger
}

// NewService создаёт сервис импорта. Кэш необязателен: без него
// повторные опросы одной ленты не подавляются.
func NewService(st *store.Service, fetcher domain.FeedFetcher, cache domain.Cache, onceTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{store: st, fetcher: fetcher, cache: cache, onceTTL: onceTTL, log: logger}
}

// Import выполняет импорт указанного формата. Для формата feed payload —
// это URL ленты, для остальных — само содержимое.
func (s *Service) Import(ctx context.Context, format domain.ImportFormat, payload []byte) (domain.ImportReport, error) {
	switch format {
	case domain.FormatArchive:
		return s.run(ctx, archiveParser{}, payload)
	case domain.FormatCSV:
		return s.run(ctx, csvParser{}, payload)
	case domain.FormatFeed:
		return s.ImportFeed(ctx, strings.TrimSpace(string(payload)))
	default:
		return domain.ImportReport{}, fmt.Errorf("%w: неизвестный формат импорта %q", domain.ErrInvalidFormat, format)
	}
}

// ImportFeed загружает ленту по URL и импортирует её элементы.
// Повторный импорт того же URL в пределах TTL подавляется кэшем.
func (s *Service) ImportFeed(ctx context.Context, url string) (domain.ImportReport, error) {
	if !FeedURLSupported(url) {
		return domain.ImportReport{}, fmt.Errorf("%w: URL не похож на RSS-ленту", domain.ErrInvalidFormat)
	}
	if s.fetcher == nil {
		return domain.ImportReport{}, fmt.Errorf("импорт лент не настроен")
	}

	var report domain.ImportReport
	run := func() error {
		body, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			metrics.FeedFetchErrors.Inc()
			return err
		}
		report, err = s.run(ctx, feedParser{}, body)
		return err
	}

	if s.cache == nil {
		if err := run(); err != nil {
			return domain.ImportReport{}, err
		}
		return report, nil
	}
	if err := s.cache.Once("import:feed:"+url, s.onceTTL, run); err != nil {
		return domain.ImportReport{}, err
	}
	return report, nil
}

func (s *Service) run(ctx context.Context, p parser, payload []byte) (domain.ImportReport, error) {
	start := time.Now()
	candidates, err := p.Parse(payload)
	if err != nil {
		return domain.ImportReport{}, err
	}

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return domain.ImportReport{}, fmt.Errorf("получение категорий: %w", err)
	}
	for i := range candidates {
		combined := candidates[i].Text
		if candidates[i].QuotedText != "" {
			combined += " " + candidates[i].QuotedText
		}
		candidates[i].AutoTags = tags.Suggest(combined, categories)
	}

	bulk, err := s.store.CreateMany(ctx, candidates)
	if err != nil {
		return domain.ImportReport{}, fmt.Errorf("пакетная вставка: %w", err)
	}

	report := domain.ImportReport{
		AddedCount:      bulk.CreatedCount,
		DuplicateCount:  bulk.DuplicateCount,
		TotalCandidates: len(candidates),
	}
	metrics.ObserveImport(string(p.Format()), report.AddedCount, report.DuplicateCount, start)
	s.log.Info().
		Str("format", string(p.Format())).
		Int("added", report.AddedCount).
		Int("duplicates", report.DuplicateCount).
		Int("candidates", report.TotalCandidates).
		Msg("импорт завершён")
	return report, nil
}
