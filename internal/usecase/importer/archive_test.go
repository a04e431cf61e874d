package importer

import (
	"errors"
	"testing"

	"rt-keeper/internal/domain"
)

const archiveSample = `window.YTD.tweets.part0 = [
  {
    "tweet": {
      "id_str": "111",
      "full_text": "RT @karpathy: нейросети это весело",
      "created_at": "Mon Jan 02 15:04:05 -0700 2006",
      "entities": {
        "hashtags": [{"text": "ai"}],
        "user_mentions": [{"screen_name": "karpathy"}],
        "urls": [{"expanded_url": "https://example.com/paper"}]
      },
      "extended_entities": {
        "media": [{"type": "photo", "media_url_https": "https://pbs.example/img.jpg"}]
      }
    }
  },
  {
    "tweet": {
      "id_str": "222",
      "full_text": "обычный твит без ретвита"
    }
  }
];`

func TestArchiveParseJSWrapper(t *testing.T) {
	candidates, err := archiveParser{}.Parse([]byte(archiveSample))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("ожидали 1 кандидата (только ретвит), получили %d", len(candidates))
	}

	got := candidates[0]
	if got.SourcePostID != "111" || got.Source != domain.SourceArchive {
		t.Fatalf("неожиданный ключ записи: %q/%q", got.SourcePostID, got.Source)
	}
	if got.AuthorHandle != "karpathy" {
		t.Fatalf("ожидали автора из префикса RT, получили %q", got.AuthorHandle)
	}
	if got.Text != "нейросети это весело" {
		t.Fatalf("префикс RT должен быть срезан, получили %q", got.Text)
	}
	if got.OriginalCreatedAt == nil || got.OriginalCreatedAt.Year() != 2006 {
		t.Fatalf("ожидали разобранную дату, получили %v", got.OriginalCreatedAt)
	}
	if len(got.Entities.Hashtags) != 1 || got.Entities.Hashtags[0] != "ai" {
		t.Fatalf("неожиданные хэштеги: %v", got.Entities.Hashtags)
	}
	if len(got.Entities.URLs) != 1 || got.Entities.URLs[0] != "https://example.com/paper" {
		t.Fatalf("неожиданные ссылки: %v", got.Entities.URLs)
	}
	if len(got.Media) != 1 || got.Media[0].Kind != domain.MediaImage {
		t.Fatalf("неожиданные вложения: %v", got.Media)
	}
	if got.RawPayload == nil {
		t.Fatalf("исходный элемент должен сохраняться в rawPayload")
	}
}

func TestArchiveParseRawArray(t *testing.T) {
	payload := `[{"id_str": "1", "full_text": "RT @dev: пример", "retweeted_status": {"id_str": "9", "full_text": "пример", "user": {"screen_name": "dev", "name": "Dev"}}}]`
	candidates, err := archiveParser{}.Parse([]byte(payload))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("ожидали 1 кандидата, получили %d", len(candidates))
	}
	if candidates[0].AuthorName != "Dev" {
		t.Fatalf("ожидали имя автора из retweeted_status, получили %q", candidates[0].AuthorName)
	}
}

func TestArchiveParseQuote(t *testing.T) {
	payload := `[{"id_str": "1", "full_text": "комментарий к цитате", "is_quote_status": true, "quoted_status": {"id_str": "9", "full_text": "исходный текст", "user": {"screen_name": "orig"}}}]`
	candidates, err := archiveParser{}.Parse([]byte(payload))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("ожидали 1 кандидата, получили %d", len(candidates))
	}
	if candidates[0].QuotedText != "исходный текст" || candidates[0].QuotedAuthor != "orig" {
		t.Fatalf("неожиданная цитата: %q / %q", candidates[0].QuotedText, candidates[0].QuotedAuthor)
	}
}

func TestArchiveParseRejectsGarbage(t *testing.T) {
	if _, err := (archiveParser{}).Parse([]byte("просто текст")); !errors.Is(err, domain.ErrInvalidFormat) {
		t.Fatalf("ожидали ErrInvalidFormat, получили %v", err)
	}
	if _, err := (archiveParser{}).Parse([]byte("window.YTD.tweets.part0 = нет массива")); !errors.Is(err, domain.ErrInvalidFormat) {
		t.Fatalf("ожидали ErrInvalidFormat для обёртки без массива, получили %v", err)
	}
}
