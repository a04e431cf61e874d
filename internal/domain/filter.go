package domain

import "strings"

// Matches проверяет запись по предикату. Условия комбинируются по AND,
// теговое условие — any-of по объединению ручных и автоматических тегов.
func (f TweetFilter) Matches(t Tweet) bool {
	if len(f.Tags) > 0 && !matchesAnyTag(t, f.Tags) {
		return false
	}
	if f.DateFrom != nil && t.CapturedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && t.CapturedAt.After(*f.DateTo) {
		return false
	}
	if f.Source != "" && t.Source != f.Source {
		return false
	}
	if f.HasMedia != nil && t.HasMedia() != *f.HasMedia {
		return false
	}
	if f.Author != "" {
		needle := strings.ToLower(f.Author)
		if !strings.Contains(strings.ToLower(t.AuthorHandle), needle) &&
			!strings.Contains(strings.ToLower(t.AuthorName), needle) {
			return false
		}
	}
	return true
}

func matchesAnyTag(t Tweet, wanted []string) bool {
	for _, want := range wanted {
		for _, tag := range t.EffectiveTags() {
			if strings.EqualFold(tag, want) {
				return true
			}
		}
	}
	return false
}
