package search

import "testing"

func TestHighlightSpans(t *testing.T) {
	got := HighlightSpans("golang дженерики", []Span{{Start: 0, End: 6}})
	want := "<mark>golang</mark> дженерики"
	if got != want {
		t.Fatalf("ожидали %q, получили %q", want, got)
	}
}

func TestHighlightSpansEscapesOutsideAndInside(t *testing.T) {
	got := HighlightSpans("a<b>c", []Span{{Start: 2, End: 3}})
	want := "a&lt;<mark>b</mark>&gt;c"
	if got != want {
		t.Fatalf("ожидали %q, получили %q", want, got)
	}
}

func TestHighlightSpansSkipsOverlapping(t *testing.T) {
	got := HighlightSpans("abcdef", []Span{{Start: 0, End: 3}, {Start: 2, End: 4}})
	want := "<mark>abc</mark>def"
	if got != want {
		t.Fatalf("ожидали %q, получили %q", want, got)
	}
}

func TestHighlightSpansEmpty(t *testing.T) {
	if got := HighlightSpans("текст", nil); got != "текст" {
		t.Fatalf("без интервалов текст должен вернуться как есть, получили %q", got)
	}
}
