package importer

import (
	"fmt"
	"strings"
	"time"

	"rt-keeper/internal/domain"
)

// Синонимы имён колонок CSV, приводимые к каноничным.
var csvSynonyms = map[string]string{
	"author":     "user_handle",
	"content":    "text",
	"created_at": "date",
	"source_url": "url",
}

// Обязательные колонки CSV.
var csvRequired = []string{"tweet_id", "text"}

var csvDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// csvParser разбирает CSV с шаблонным заголовком
// tweet_id,user_handle,user_name,text,date,url,tags.
type csvParser struct{}

func (csvParser) Format() domain.ImportFormat { return domain.FormatCSV }

func (csvParser) Parse(payload []byte) ([]domain.Tweet, error) {
	lines := splitLines(string(payload))
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: в CSV меньше двух строк", domain.ErrInvalidFormat)
	}

	header := parseCSVLine(lines[0])
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := csvSynonyms[name]; ok {
			name = canonical
		}
		columns[name] = i
	}
	for _, required := range csvRequired {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: нет обязательной колонки %q", domain.ErrInvalidFormat, required)
		}
	}

	cell := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var candidates []domain.Tweet
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		row := parseCSVLine(line)
		id := cell(row, "tweet_id")
		text := cell(row, "text")
		// Строка без идентификатора или текста пропускается,
		// импорт при этом не прерывается.
		if id == "" || text == "" {
			continue
		}
		candidate := domain.Tweet{
			SourcePostID: id,
			Source:       domain.SourceCSV,
			AuthorHandle: cell(row, "user_handle"),
			AuthorName:   cell(row, "user_name"),
			Text:         text,
		}
		if date := cell(row, "date"); date != "" {
			for _, layout := range csvDateLayouts {
				if ts, err := time.Parse(layout, date); err == nil {
					utc := ts.UTC()
					candidate.OriginalCreatedAt = &utc
					break
				}
			}
		}
		if url := cell(row, "url"); url != "" {
			candidate.Entities.URLs = []string{url}
		}
		if rawTags := cell(row, "tags"); rawTags != "" {
			for _, tag := range strings.Split(rawTags, ";") {
				tag = strings.TrimSpace(tag)
				if tag != "" {
					candidate.Tags = append(candidate.Tags, tag)
				}
			}
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Trim(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// parseCSVLine разбирает одну строку CSV с кавычками: запятая внутри
// кавычек не разделяет поля, удвоенная кавычка экранирует кавычку.
func parseCSVLine(line string) []string {
	var (
		fields  []string
		current strings.Builder
		quoted  bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"' && quoted && i+1 < len(runes) && runes[i+1] == '"':
			current.WriteRune('"')
			i++
		case c == '"':
			quoted = !quoted
		case c == ',' && !quoted:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(c)
		}
	}
	fields = append(fields, current.String())
	return fields
}

// EncodeCSV формирует CSV по шаблонному заголовку. Используется экспортом,
// чтобы выгрузка повторно импортировалась без новых записей.
func EncodeCSV(tweets []domain.Tweet) string {
	var b strings.Builder
	b.WriteString("tweet_id,user_handle,user_name,text,date,url,tags\n")
	for _, t := range tweets {
		date := t.CapturedAt.UTC().Format(time.RFC3339)
		if t.OriginalCreatedAt != nil {
			date = t.OriginalCreatedAt.UTC().Format(time.RFC3339)
		}
		url := ""
		if len(t.Entities.URLs) > 0 {
			url = t.Entities.URLs[0]
		}
		// Разборщик построчный, поэтому переводы строк в тексте
		// заменяются пробелами.
		row := []string{
			t.SourcePostID,
			t.AuthorHandle,
			t.AuthorName,
			strings.ReplaceAll(t.Text, "\n", " "),
			date,
			url,
			strings.Join(t.Tags, ";"),
		}
		for i, field := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(encodeCSVField(field))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func encodeCSVField(field string) string {
	if !strings.ContainsAny(field, ",\"\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
