package tags

import (
	"testing"

	"rt-keeper/internal/domain"
)

func testCategories() []domain.Category {
	return []domain.Category{
		{Name: "ai", Keywords: []string{"gpt", "llm", "neural"}},
		{Name: "programming", Keywords: []string{"golang", "rust"}},
	}
}

func TestSuggestMatchesKeywords(t *testing.T) {
	got := Suggest("Вышел GPT-5, пишем к нему клиент на golang", testCategories())
	if len(got) != 2 || got[0] != "ai" || got[1] != "programming" {
		t.Fatalf("ожидали [ai programming], получили %v", got)
	}
}

func TestSuggestAddsCategoryOnce(t *testing.T) {
	got := Suggest("gpt рядом с llm и neural", testCategories())
	if len(got) != 1 || got[0] != "ai" {
		t.Fatalf("категория добавляется один раз, получили %v", got)
	}
}

func TestSuggestEmptyText(t *testing.T) {
	if got := Suggest("   ", testCategories()); got != nil {
		t.Fatalf("пустой текст не даёт предложений, получили %v", got)
	}
}

func TestConfidenceRanksByMatchedKeywords(t *testing.T) {
	got := Confidence("gpt, llm и немного golang", testCategories())
	if len(got) != 2 {
		t.Fatalf("ожидали 2 категории, получили %d", len(got))
	}
	if got[0].Category != "ai" {
		t.Fatalf("ожидали ai первой, получили %q", got[0].Category)
	}
	// 2 из 3 ключевых слов ai, 1 из 2 programming.
	if got[0].Confidence < got[1].Confidence-1e-9 {
		t.Fatalf("уверенность первой категории не должна быть ниже: %v", got)
	}
}

func TestConfidenceSkipsUnmatched(t *testing.T) {
	got := Confidence("про котиков", testCategories())
	if len(got) != 0 {
		t.Fatalf("без совпадений список пуст, получили %v", got)
	}
}
