package tags

import (
	"sort"
	"strings"

	"rt-keeper/internal/domain"
)

// CategoryConfidence — оценка категории для отображения в UI.
type CategoryConfidence struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Suggest подбирает теги по ключевым словам категорий: регистронезависимое
// вхождение любого ключевого слова добавляет категорию ровно один раз.
// Пустой текст не даёт предложений.
func Suggest(text string, categories []domain.Category) []string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil
	}
	var suggested []string
	for _, category := range categories {
		for _, keyword := range category.Keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword == "" {
				continue
			}
			if strings.Contains(text, keyword) {
				suggested = append(suggested, category.Name)
				break
			}
		}
	}
	return suggested
}

// Confidence ранжирует категории по числу различных совпавших ключевых
// слов по убыванию. Хранилищем и поиском не используется.
func Confidence(text string, categories []domain.Category) []CategoryConfidence {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil
	}
	type scored struct {
		name    string
		matched int
		total   int
	}
	var hits []scored
	for _, category := range categories {
		matched := 0
		total := 0
		for _, keyword := range category.Keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword == "" {
				continue
			}
			total++
			if strings.Contains(text, keyword) {
				matched++
			}
		}
		if matched > 0 {
			hits = append(hits, scored{name: category.Name, matched: matched, total: total})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].matched > hits[j].matched })

	out := make([]CategoryConfidence, 0, len(hits))
	for _, h := range hits {
		out = append(out, CategoryConfidence{
			Category:   h.name,
			Confidence: float64(h.matched) / float64(h.total),
		})
	}
	return out
}
