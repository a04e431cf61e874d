package search

import (
	"math"
	"sort"
	"strings"

	"rt-keeper/internal/domain"
)

// Константы скоринга. Значения сохранены для совместимости поведения,
// но являются настраиваемыми, а не несущими.
const (
	// GapPenalty — штраф за каждый пропущенный символ при
	// последовательном (fuzzy) совпадении.
	GapPenalty = 0.1
	// TieWindow — ширина окна, внутри которого оценки считаются
	// равными и порядок решает свежесть записи.
	TieWindow = 0.1
)

// Поля записи, участвующие в сопоставлении, в фиксированном порядке.
// Вес у всех одинаковый.
var searchFields = []string{"text", "quotedText", "authorHandle", "authorName"}

// Span — полуоткрытый интервал совпадения в рунах поля.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// FieldMatch — одно совпадение (терм, поле), сохраняется для подсветки.
type FieldMatch struct {
	Field string  `json:"field"`
	Term  string  `json:"term"`
	Score float64 `json:"score"`
	Spans []Span  `json:"spans"`
}

// Result — запись с итоговой оценкой. Меньше — лучше, 0 — точное совпадение.
type Result struct {
	Tweet   domain.Tweet `json:"tweet"`
	Score   float64      `json:"score"`
	Matches []FieldMatch `json:"matches,omitempty"`
}

// Search — чистая функция поиска: фильтрация всегда, затем сопоставление
// термов запроса с полями и ранжирование по возрастанию оценки.
// Пустой запрос возвращает отфильтрованные записи с оценкой 0
// в порядке убывания captured_at.
func Search(tweets []domain.Tweet, query string, filter domain.TweetFilter) []Result {
	filtered := make([]domain.Tweet, 0, len(tweets))
	for _, t := range tweets {
		if filter.Matches(t) {
			filtered = append(filtered, t)
		}
	}

	terms := strings.Fields(query)
	if len(terms) == 0 {
		results := make([]Result, 0, len(filtered))
		for _, t := range filtered {
			results = append(results, Result{Tweet: t})
		}
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Tweet.CapturedAt.After(results[j].Tweet.CapturedAt)
		})
		return results
	}

	results := make([]Result, 0, len(filtered))
	for _, t := range filtered {
		matches := matchTweet(t, terms)
		if len(matches) == 0 {
			continue
		}
		sum := 0.0
		for _, m := range matches {
			sum += m.Score
		}
		results = append(results, Result{
			Tweet:   t,
			Score:   sum / float64(len(matches)),
			Matches: matches,
		})
	}

	rank(results)
	return results
}

func fieldValue(t domain.Tweet, field string) string {
	switch field {
	case "text":
		return t.Text
	case "quotedText":
		return t.QuotedText
	case "authorHandle":
		return t.AuthorHandle
	case "authorName":
		return t.AuthorName
	}
	return ""
}

func matchTweet(t domain.Tweet, terms []string) []FieldMatch {
	var matches []FieldMatch
	for _, term := range terms {
		for _, field := range searchFields {
			value := fieldValue(t, field)
			if value == "" {
				continue
			}
			score, spans, ok := matchField(value, term)
			if !ok {
				continue
			}
			matches = append(matches, FieldMatch{Field: field, Term: term, Score: score, Spans: spans})
		}
	}
	return matches
}

// matchField сопоставляет терм с полем в два яруса: точная подстрока
// с оценкой 0, иначе жадное последовательное совпадение со штрафом
// GapPenalty за каждый пропущенный символ. Сопоставление
// регистронезависимое, позиции — в рунах.
func matchField(value, term string) (float64, []Span, bool) {
	fieldRunes := []rune(strings.ToLower(value))
	termRunes := []rune(strings.ToLower(term))
	if len(termRunes) == 0 {
		return 0, nil, false
	}

	if start, ok := indexRunes(fieldRunes, termRunes); ok {
		return 0, []Span{{Start: start, End: start + len(termRunes)}}, true
	}

	penalty := 0.0
	var positions []int
	j := 0
	for i := 0; i < len(fieldRunes) && j < len(termRunes); i++ {
		if fieldRunes[i] == termRunes[j] {
			positions = append(positions, i)
			j++
			continue
		}
		penalty += GapPenalty
	}
	if j < len(termRunes) {
		return 0, nil, false
	}
	return penalty, mergePositions(positions), true
}

func indexRunes(haystack, needle []rune) (int, bool) {
	if len(needle) > len(haystack) {
		return 0, false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		found := true
		for k := range needle {
			if haystack[i+k] != needle[k] {
				found = false
				break
			}
		}
		if found {
			return i, true
		}
	}
	return 0, false
}

// mergePositions склеивает соседние позиции рун в интервалы.
func mergePositions(positions []int) []Span {
	if len(positions) == 0 {
		return nil
	}
	spans := []Span{{Start: positions[0], End: positions[0] + 1}}
	for _, pos := range positions[1:] {
		last := &spans[len(spans)-1]
		if pos == last.End {
			last.End++
			continue
		}
		spans = append(spans, Span{Start: pos, End: pos + 1})
	}
	return spans
}

// rank сортирует по возрастанию оценки; оценки в пределах TieWindow
// считаются равными, и тогда свежие (captured_at) записи идут раньше.
func rank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if math.Abs(results[i].Score-results[j].Score) < TieWindow {
			return results[i].Tweet.CapturedAt.After(results[j].Tweet.CapturedAt)
		}
		return results[i].Score < results[j].Score
	})
}
