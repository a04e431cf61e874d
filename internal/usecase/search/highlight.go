package search

import (
	"html"
	"strings"
)

// Маркеры подсветки совпадений.
const (
	markOpen  = "<mark>"
	markClose = "</mark>"
)

// HighlightSpans вставляет маркеры вокруг интервалов совпадений.
// Интервалы должны быть отсортированы по возрастанию и не пересекаться;
// весь текст вне маркеров экранируется для безопасного отображения.
func HighlightSpans(text string, spans []Span) string {
	runes := []rune(text)
	var b strings.Builder
	prev := 0
	for _, span := range spans {
		if span.Start < prev || span.Start > len(runes) {
			continue
		}
		end := span.End
		if end > len(runes) {
			end = len(runes)
		}
		b.WriteString(html.EscapeString(string(runes[prev:span.Start])))
		b.WriteString(markOpen)
		b.WriteString(html.EscapeString(string(runes[span.Start:end])))
		b.WriteString(markClose)
		prev = end
	}
	b.WriteString(html.EscapeString(string(runes[prev:])))
	return b.String()
}
