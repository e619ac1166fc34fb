package answersheet

import (
	"regexp"

	"github.com/gradeflow/gradeflow/internal/pdf"
)

var (
	questionLineRe = regexp.MustCompile(`(?i)^(?:(?:question|q)\s*\d+[.:\s]?|\d+\.\s)`)
	answerLineRe   = regexp.MustCompile(`(?i)^answer\s*[:.]`)
)

// Anchor is the (page, y) position of a header line, ordered
// lexicographically.
type Anchor struct {
	Page int
	Y    float64
}

// Before reports strict lexicographic order.
func (a Anchor) Before(b Anchor) bool {
	if a.Page != b.Page {
		return a.Page < b.Page
	}
	return a.Y < b.Y
}

// Span is a half-open (page, y) interval owned by one answer.
type Span struct {
	Start Anchor
	End   Anchor
}

// Contains reports whether p falls inside the span.
func (s Span) Contains(p Anchor) bool {
	return !p.Before(s.Start) && p.Before(s.End)
}

// collectAnchors scans page lines for question and answer headers. Scan
// order is already lexicographic by (page, y).
func collectAnchors(pages []pdf.Page) (qAnchors, aAnchors []Anchor) {
	for _, p := range pages {
		for _, line := range p.Lines {
			pos := Anchor{Page: p.Number, Y: line.Y}
			switch {
			case questionLineRe.MatchString(line.Text):
				qAnchors = append(qAnchors, pos)
			case answerLineRe.MatchString(line.Text):
				aAnchors = append(aAnchors, pos)
			}
		}
	}
	return qAnchors, aAnchors
}

// buildSpans derives one span per answer anchor: from the anchor to the
// first question anchor strictly below it. The last span extends past the
// bottom of the last page.
func buildSpans(aAnchors, qAnchors []Anchor, pages []pdf.Page) []Span {
	docEnd := Anchor{Page: 0, Y: 1}
	if n := len(pages); n > 0 {
		last := pages[n-1]
		docEnd = Anchor{Page: last.Number, Y: last.Height + 1}
	}

	spans := make([]Span, 0, len(aAnchors))
	for _, a := range aAnchors {
		end := docEnd
		for _, q := range qAnchors {
			if a.Before(q) {
				end = q
				break
			}
		}
		spans = append(spans, Span{Start: a, End: end})
	}
	return spans
}

// spanIndexFor locates the span that contains pos; when no span contains it,
// the latest span whose start precedes pos is used. Returns -1 when pos lies
// before every span.
func spanIndexFor(spans []Span, pos Anchor) int {
	for i, s := range spans {
		if s.Contains(pos) {
			return i
		}
	}
	best := -1
	for i, s := range spans {
		if s.Start.Before(pos) {
			best = i
		}
	}
	return best
}
