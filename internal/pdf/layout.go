package pdf

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// footerRe matches renderer pagination footers such as "Page 3", "Page 3 of 7"
// and "Page 3/7". English-only; non-English pagination strings will pass
// through.
var footerRe = regexp.MustCompile(`(?i)^page\s+\d+(\s*(of|/)\s*\d+)?$`)

// word is a horizontal run of glyphs on one visual row.
type word struct {
	x0, x1      float64
	top, bottom float64
	text        string
}

func (w word) xCenter() float64 { return (w.x0 + w.x1) / 2 }
func (w word) yCenter() float64 { return (w.top + w.bottom) / 2 }

// row is a group of words sharing a rounded top coordinate.
type row struct {
	y     float64
	words []word
}

func (r row) text() string {
	parts := make([]string, 0, len(r.words))
	for _, w := range r.words {
		parts = append(parts, w.text)
	}
	return strings.Join(parts, " ")
}

func roundTop(v float64) float64 {
	return math.Round(v*10) / 10
}

// groupRows buckets words by their top coordinate rounded to one decimal and
// orders each bucket left to right.
func groupRows(words []word) []row {
	buckets := make(map[float64][]word)
	for _, w := range words {
		key := roundTop(w.top)
		buckets[key] = append(buckets[key], w)
	}

	keys := make([]float64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	rows := make([]row, 0, len(keys))
	for _, k := range keys {
		ws := buckets[k]
		sort.Slice(ws, func(i, j int) bool { return ws[i].x0 < ws[j].x0 })
		rows = append(rows, row{y: k, words: ws})
	}
	return rows
}

// rowsToLines converts rows to line anchors, dropping footers and blank rows.
func rowsToLines(rows []row) []Line {
	lines := make([]Line, 0, len(rows))
	for _, r := range rows {
		text := strings.TrimSpace(r.text())
		if text == "" || footerRe.MatchString(text) {
			continue
		}
		lines = append(lines, Line{Y: r.y, Text: text})
	}
	return lines
}

// pageText renders the page's running text from rows, excluding words that sit
// inside a table bounding box so table content is not duplicated. If every
// word falls inside tables but the page plainly has text, the raw row text is
// used as a fallback.
func pageText(rows []row, tables []Table) string {
	if len(tables) == 0 {
		return joinRowText(rows, nil)
	}
	clipped := joinRowText(rows, tables)
	if clipped == "" {
		return joinRowText(rows, nil)
	}
	return clipped
}

func joinRowText(rows []row, exclude []Table) string {
	var lines []string
	for _, r := range rows {
		var parts []string
		for _, w := range r.words {
			if insideAny(w, exclude) {
				continue
			}
			parts = append(parts, w.text)
		}
		text := strings.TrimSpace(strings.Join(parts, " "))
		if text == "" || footerRe.MatchString(text) {
			continue
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}

func insideAny(w word, tables []Table) bool {
	for _, t := range tables {
		if t.BBox.Contains(w.xCenter(), w.yCenter()) {
			return true
		}
	}
	return false
}
