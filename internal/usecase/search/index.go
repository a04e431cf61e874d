package search

import (
	"regexp"
	"strings"

	"rt-keeper/internal/domain"
)

// Ограничения списков подсказок.
const (
	maxAuthorSuggestions  = 50
	maxHashtagSuggestions = 50
)

var hashtagPattern = regexp.MustCompile(`#\w+`)

// Suggestions — наборы значений для автодополнения в UI.
type Suggestions struct {
	Authors  []string `json:"authors"`
	Tags     []string `json:"tags"`
	Hashtags []string `json:"hashtags"`
}

// SuggestionIndex собирает подсказки: авторы (не более 50), все теги
// и хэштеги из текста (не более 50).
func SuggestionIndex(tweets []domain.Tweet) Suggestions {
	s := Suggestions{Authors: []string{}, Tags: []string{}, Hashtags: []string{}}
	seenAuthors := map[string]struct{}{}
	seenTags := map[string]struct{}{}
	seenHashtags := map[string]struct{}{}

	for _, t := range tweets {
		if t.AuthorHandle != "" && len(s.Authors) < maxAuthorSuggestions {
			if _, ok := seenAuthors[t.AuthorHandle]; !ok {
				seenAuthors[t.AuthorHandle] = struct{}{}
				s.Authors = append(s.Authors, t.AuthorHandle)
			}
		}
		for _, tag := range t.EffectiveTags() {
			if _, ok := seenTags[tag]; ok {
				continue
			}
			seenTags[tag] = struct{}{}
			s.Tags = append(s.Tags, tag)
		}
		for _, hashtag := range hashtagPattern.FindAllString(t.Text, -1) {
			if len(s.Hashtags) >= maxHashtagSuggestions {
				break
			}
			if _, ok := seenHashtags[hashtag]; ok {
				continue
			}
			seenHashtags[hashtag] = struct{}{}
			s.Hashtags = append(s.Hashtags, hashtag)
		}
	}
	return s
}

// Index — вспомогательные отображения для повторных выборок внешними
// потребителями. На результат ранжирования не влияет.
type Index struct {
	ByID     map[string]domain.Tweet
	ByAuthor map[string][]domain.Tweet
	ByTag    map[string][]domain.Tweet
	ByDay    map[string][]domain.Tweet
}

// BuildIndex строит отображения id/автор/тег/день → записи.
func BuildIndex(tweets []domain.Tweet) Index {
	idx := Index{
		ByID:     map[string]domain.Tweet{},
		ByAuthor: map[string][]domain.Tweet{},
		ByTag:    map[string][]domain.Tweet{},
		ByDay:    map[string][]domain.Tweet{},
	}
	for _, t := range tweets {
		idx.ByID[t.ID] = t
		if t.AuthorHandle != "" {
			handle := strings.ToLower(t.AuthorHandle)
			idx.ByAuthor[handle] = append(idx.ByAuthor[handle], t)
		}
		for _, tag := range t.EffectiveTags() {
			key := strings.ToLower(tag)
			idx.ByTag[key] = append(idx.ByTag[key], t)
		}
		day := t.CapturedAt.Format("2006-01-02")
		idx.ByDay[day] = append(idx.ByDay[day], t)
	}
	return idx
}
