package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitTextShortPassthrough(t *testing.T) {
	t.Parallel()
	got := splitText("hello", 10)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("splitText = %v", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	lines := []string{
		strings.Repeat("a", 30),
		strings.Repeat("b", 30),
		strings.Repeat("c", 30),
	}
	s := strings.Join(lines, "\n")

	got := splitText(s, 70)
	if len(got) != 2 {
		t.Fatalf("got %d chunks, want 2: %q", len(got), got)
	}
	if got[0] != lines[0]+"\n"+lines[1] {
		t.Fatalf("first chunk did not end at the newline boundary: %q", got[0])
	}
	if got[1] != lines[2] {
		t.Fatalf("second chunk = %q", got[1])
	}
}

func TestSplitTextHardBreakWithoutNewlines(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("x", 95)
	got := splitText(s, 40)
	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3", len(got))
	}
	for i, c := range got {
		if utf8.RuneCountInString(c) > 40 {
			t.Fatalf("chunk %d over limit: %d runes", i, utf8.RuneCountInString(c))
		}
	}
	if strings.Join(got, "") != s {
		t.Fatal("hard-broken chunks do not reassemble the input")
	}
}

func TestSplitTextRuneAware(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("💰", 25)
	got := splitText(s, 10)
	for i, c := range got {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %d broke a rune: %q", i, c)
		}
		if utf8.RuneCountInString(c) > 10 {
			t.Fatalf("chunk %d over limit", i)
		}
	}
	if strings.Join(got, "") != s {
		t.Fatal("chunks do not reassemble the input")
	}
}

func TestSplitTextNoEmptyChunks(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("a", 20) + "\n\n\n" + strings.Repeat("b", 20)
	for _, c := range splitText(s, 22) {
		if c == "" {
			t.Fatal("splitText produced an empty chunk")
		}
	}
}
