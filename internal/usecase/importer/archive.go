package importer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"rt-keeper/internal/domain"
)

// archiveAssignPrefix — признак JS-обёртки экспорта архива
// ("window.YTD.tweets.part0 = [...]").
const archiveAssignPrefix = "window.YTD."

var rtPrefixPattern = regexp.MustCompile(`^RT @(\w+):\s?`)

type archiveUser struct {
	ScreenName string `json:"screen_name"`
	Name       string `json:"name"`
}

type archiveEntity struct {
	Text        string `json:"text"`
	ScreenName  string `json:"screen_name"`
	ExpandedURL string `json:"expanded_url"`
	URL         string `json:"url"`
}

type archiveMedia struct {
	Type          string `json:"type"`
	MediaURLHTTPS string `json:"media_url_https"`
	MediaURL      string `json:"media_url"`
}

type archiveStatus struct {
	IDStr     string       `json:"id_str"`
	FullText  string       `json:"full_text"`
	Text      string       `json:"text"`
	CreatedAt string       `json:"created_at"`
	User      *archiveUser `json:"user"`
}

type archiveTweet struct {
	IDStr         string         `json:"id_str"`
	ID            string         `json:"id"`
	FullText      string         `json:"full_text"`
	Text          string         `json:"text"`
	CreatedAt     string         `json:"created_at"`
	User          *archiveUser   `json:"user"`
	IsQuoteStatus bool           `json:"is_quote_status"`
	Retweeted     *archiveStatus `json:"retweeted_status"`
	Quoted        *archiveStatus `json:"quoted_status"`
	Entities      struct {
		Hashtags     []archiveEntity `json:"hashtags"`
		UserMentions []archiveEntity `json:"user_mentions"`
		URLs         []archiveEntity `json:"urls"`
	} `json:"entities"`
	ExtendedEntities struct {
		Media []archiveMedia `json:"media"`
	} `json:"extended_entities"`
}

// archiveParser разбирает экспорт архива: сырой JSON-массив либо
// массив в JS-присваивании.
type archiveParser struct{}

func (archiveParser) Format() domain.ImportFormat { return domain.FormatArchive }

func (archiveParser) Parse(payload []byte) ([]domain.Tweet, error) {
	body := strings.TrimSpace(string(payload))
	if strings.HasPrefix(body, archiveAssignPrefix) {
		idx := strings.Index(body, "[")
		if idx < 0 {
			return nil, fmt.Errorf("%w: в JS-обёртке нет массива", domain.ErrInvalidFormat)
		}
		body = body[idx:]
		body = strings.TrimSuffix(strings.TrimSpace(body), ";")
	}
	if !strings.HasPrefix(body, "[") {
		return nil, fmt.Errorf("%w: ожидали JSON-массив архива", domain.ErrInvalidFormat)
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidFormat, err)
	}

	var candidates []domain.Tweet
	for _, raw := range items {
		item, ok := decodeArchiveItem(raw)
		if !ok {
			continue
		}
		candidate, ok := mapArchiveTweet(item, raw)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

// decodeArchiveItem принимает элемент как есть либо завёрнутый
// в объект {"tweet": …}, как в официальном экспорте.
func decodeArchiveItem(raw json.RawMessage) (archiveTweet, bool) {
	var wrapper struct {
		Tweet *archiveTweet `json:"tweet"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Tweet != nil {
		return *wrapper.Tweet, true
	}
	var item archiveTweet
	if err := json.Unmarshal(raw, &item); err != nil {
		return archiveTweet{}, false
	}
	return item, true
}

// mapArchiveTweet отображает твит архива в кандидата записи.
// Берутся только ретвиты и цитаты.
func mapArchiveTweet(item archiveTweet, raw json.RawMessage) (domain.Tweet, bool) {
	id := item.IDStr
	if id == "" {
		id = item.ID
	}
	if id == "" {
		return domain.Tweet{}, false
	}

	text := item.FullText
	if text == "" {
		text = item.Text
	}

	rtMatch := rtPrefixPattern.FindStringSubmatch(text)
	isRetweet := rtMatch != nil || item.Retweeted != nil
	isQuote := item.Quoted != nil || item.IsQuoteStatus
	if !isRetweet && !isQuote {
		return domain.Tweet{}, false
	}

	var authorHandle, authorName string
	switch {
	case item.Retweeted != nil && item.Retweeted.User != nil:
		authorHandle = item.Retweeted.User.ScreenName
		authorName = item.Retweeted.User.Name
	case rtMatch != nil:
		authorHandle = rtMatch[1]
	case item.User != nil:
		authorHandle = item.User.ScreenName
		authorName = item.User.Name
	}

	text = rtPrefixPattern.ReplaceAllString(text, "")

	candidate := domain.Tweet{
		SourcePostID: id,
		Source:       domain.SourceArchive,
		AuthorHandle: authorHandle,
		AuthorName:   authorName,
		Text:         text,
		RawPayload:   raw,
	}
	if item.Quoted != nil {
		candidate.QuotedText = item.Quoted.FullText
		if candidate.QuotedText == "" {
			candidate.QuotedText = item.Quoted.Text
		}
		if item.Quoted.User != nil {
			candidate.QuotedAuthor = item.Quoted.User.ScreenName
		}
	}
	if ts, err := time.Parse(time.RubyDate, item.CreatedAt); err == nil {
		utc := ts.UTC()
		candidate.OriginalCreatedAt = &utc
	}
	for _, h := range item.Entities.Hashtags {
		candidate.Entities.Hashtags = append(candidate.Entities.Hashtags, h.Text)
	}
	for _, m := range item.Entities.UserMentions {
		candidate.Entities.Mentions = append(candidate.Entities.Mentions, m.ScreenName)
	}
	for _, u := range item.Entities.URLs {
		url := u.ExpandedURL
		if url == "" {
			url = u.URL
		}
		if url != "" {
			candidate.Entities.URLs = append(candidate.Entities.URLs, url)
		}
	}
	for _, m := range item.ExtendedEntities.Media {
		url := m.MediaURLHTTPS
		if url == "" {
			url = m.MediaURL
		}
		if url == "" {
			continue
		}
		kind := domain.MediaImage
		switch m.Type {
		case "video":
			kind = domain.MediaVideo
		case "animated_gif":
			kind = domain.MediaGIF
		}
		candidate.Media = append(candidate.Media, domain.MediaItem{Kind: kind, URL: url})
	}
	return candidate, true
}
