package importer

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"

	"rt-keeper/internal/domain"
)

var (
	statusIDPattern   = regexp.MustCompile(`/status(?:es)?/(\d+)`)
	statusUserPattern = regexp.MustCompile(`^https?://[^/]+/([A-Za-z0-9_]+)/status`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
)

var feedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC3339,
}

// Небольшой фиксированный набор именованных сущностей HTML,
// встречающихся в описаниях лент.
var feedEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

type feedDoc struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []feedItem `xml:"item"`
	} `xml:"channel"`
}

type feedItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Creator     string `xml:"creator"`
}

// feedParser разбирает синдикационную ленту nitter-вида.
type feedParser struct{}

func (feedParser) Format() domain.ImportFormat { return domain.FormatFeed }

func (feedParser) Parse(payload []byte) ([]domain.Tweet, error) {
	var doc feedDoc
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: не XML-лента: %v", domain.ErrInvalidFormat, err)
	}

	var candidates []domain.Tweet
	for _, item := range doc.Channel.Items {
		title := strings.TrimSpace(item.Title)
		// Берутся только элементы, заголовок которых помечен как ретвит.
		if !strings.HasPrefix(title, "RT by ") && !strings.HasPrefix(title, "RT @") {
			continue
		}
		idMatch := statusIDPattern.FindStringSubmatch(item.Link)
		if idMatch == nil {
			continue
		}

		text := strings.TrimSpace(feedEntities.Replace(htmlTagPattern.ReplaceAllString(item.Description, "")))
		if text == "" {
			text = title
		}

		candidate := domain.Tweet{
			SourcePostID: idMatch[1],
			Source:       domain.SourceNitter,
			Text:         text,
		}
		if userMatch := statusUserPattern.FindStringSubmatch(item.Link); userMatch != nil {
			candidate.AuthorHandle = userMatch[1]
		}
		if candidate.AuthorHandle == "" && item.Creator != "" {
			candidate.AuthorHandle = strings.TrimPrefix(strings.TrimSpace(item.Creator), "@")
		}
		if item.Link != "" {
			candidate.Entities.URLs = []string{item.Link}
		}
		for _, layout := range feedDateLayouts {
			if ts, err := time.Parse(layout, strings.TrimSpace(item.PubDate)); err == nil {
				utc := ts.UTC()
				candidate.OriginalCreatedAt = &utc
				break
			}
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

// FeedURLSupported проверяет, похож ли URL на синдикационную ленту.
func FeedURLSupported(url string) bool {
	return strings.Contains(strings.ToLower(url), "rss")
}
