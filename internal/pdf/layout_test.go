package pdf

import (
	"strings"
	"testing"
)

func mkWord(x0, top float64, text string) word {
	return word{x0: x0, x1: x0 + float64(len(text))*5, top: top, bottom: top + 10, text: text}
}

func TestGroupRows(t *testing.T) {
	words := []word{
		mkWord(100, 50.04, "world"),
		mkWord(20, 50.01, "hello"),
		mkWord(20, 80, "second"),
	}

	rows := groupRows(words)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if got := rows[0].text(); got != "hello world" {
		t.Errorf("row 0: expected 'hello world', got %q", got)
	}
	if rows[0].y != 50.0 {
		t.Errorf("row 0: expected y 50.0, got %v", rows[0].y)
	}
	if got := rows[1].text(); got != "second" {
		t.Errorf("row 1: expected 'second', got %q", got)
	}
}

func TestGroupRowsSortsWithinRow(t *testing.T) {
	words := []word{
		mkWord(300, 10, "c"),
		mkWord(10, 10, "a"),
		mkWord(150, 10, "b"),
	}
	rows := groupRows(words)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if got := rows[0].text(); got != "a b c" {
		t.Errorf("expected 'a b c', got %q", got)
	}
}

func TestFooterFilter(t *testing.T) {
	tests := []struct {
		name string
		line string
		drop bool
	}{
		{"bare page number", "Page 3", true},
		{"page of", "Page 3 of 12", true},
		{"page slash", "Page 3/12", true},
		{"case insensitive", "PAGE 10 OF 10", true},
		{"padded", "  Page 1  ", true},
		{"ordinary text", "Page layout is discussed below", false},
		{"question header", "Question 2", false},
		{"empty", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := []row{{y: 700, words: []word{mkWord(10, 700, strings.TrimSpace(tt.line))}}}
			if strings.TrimSpace(tt.line) == "" {
				rows = []row{{y: 700, words: nil}}
			}
			lines := rowsToLines(rows)
			dropped := len(lines) == 0
			if dropped != tt.drop {
				t.Errorf("line %q: dropped = %v, want %v", tt.line, dropped, tt.drop)
			}
		})
	}
}

func TestPageTextExcludesTables(t *testing.T) {
	words := []word{
		mkWord(20, 10, "Intro"),
		mkWord(30, 110, "cellA"),
		mkWord(120, 110, "cellB"),
		mkWord(20, 200, "Outro"),
	}
	rows := groupRows(words)
	tables := []Table{{BBox: BBox{X0: 10, Top: 100, X1: 300, Bottom: 150}}}

	got := pageText(rows, tables)
	if strings.Contains(got, "cellA") || strings.Contains(got, "cellB") {
		t.Errorf("page text should not contain table cells, got %q", got)
	}
	if !strings.Contains(got, "Intro") || !strings.Contains(got, "Outro") {
		t.Errorf("page text should keep non-table rows, got %q", got)
	}
}

func TestPageTextFallbackWhenAllInsideTables(t *testing.T) {
	words := []word{mkWord(30, 110, "only")}
	rows := groupRows(words)
	tables := []Table{{BBox: BBox{X0: 0, Top: 100, X1: 300, Bottom: 150}}}

	if got := pageText(rows, tables); got != "only" {
		t.Errorf("expected raw fallback 'only', got %q", got)
	}
}

func TestTextCoverage(t *testing.T) {
	pages := []Page{
		{Text: strings.Repeat("a", 300)},
		{Text: strings.Repeat("b", 100)},
	}
	if got := TextCoverage(pages); got != 200 {
		t.Errorf("expected coverage 200, got %v", got)
	}
	if got := TextCoverage(nil); got != 0 {
		t.Errorf("expected 0 for no pages, got %v", got)
	}
}
