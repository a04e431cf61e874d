package domain

// DefaultCategories возвращает встроенный набор категорий. Он используется
// целиком и только тогда, когда пользователь не определил ни одной своей
// категории: слияния со встроенным набором не происходит.
func DefaultCategories() []Category {
	return []Category{
		{Name: "ai", Keywords: []string{"ai", "gpt", "llm", "openai", "anthropic", "claude", "machine learning", "neural", "нейросет"}},
		{Name: "crypto", Keywords: []string{"bitcoin", "btc", "ethereum", "crypto", "blockchain", "defi", "nft"}},
		{Name: "programming", Keywords: []string{"golang", "python", "javascript", "typescript", "rust", "код", "code", "api", "github", "open source"}},
		{Name: "news", Keywords: []string{"breaking", "announced", "report", "launch", "release"}},
		{Name: "design", Keywords: []string{"design", "ux", "ui", "figma", "typography"}},
		{Name: "finance", Keywords: []string{"stock", "market", "invest", "ipo", "earnings"}},
	}
}
