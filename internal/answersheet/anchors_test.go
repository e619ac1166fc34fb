package answersheet

import (
	"testing"

	"github.com/gradeflow/gradeflow/internal/pdf"
)

func TestBuildSpans(t *testing.T) {
	pages := []pdf.Page{{Number: 1, Height: 800}, {Number: 2, Height: 800}}
	qAnchors := []Anchor{{1, 50}, {1, 300}, {2, 100}}
	aAnchors := []Anchor{{1, 100}, {1, 350}, {2, 150}}

	spans := buildSpans(aAnchors, qAnchors, pages)
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}
	if spans[0].End != (Anchor{1, 300}) {
		t.Errorf("span 0 ends at %+v, want next question anchor", spans[0].End)
	}
	if spans[1].End != (Anchor{2, 100}) {
		t.Errorf("span 1 ends at %+v, want question anchor on page 2", spans[1].End)
	}
	if spans[2].End != (Anchor{2, 801}) {
		t.Errorf("span 2 ends at %+v, want past document end", spans[2].End)
	}
}

func TestSpanContains(t *testing.T) {
	s := Span{Start: Anchor{1, 100}, End: Anchor{2, 50}}
	tests := []struct {
		name string
		pos  Anchor
		want bool
	}{
		{"inside same page", Anchor{1, 200}, true},
		{"inside next page", Anchor{2, 10}, true},
		{"at start", Anchor{1, 100}, true},
		{"at end", Anchor{2, 50}, false},
		{"before start", Anchor{1, 99}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Contains(tt.pos); got != tt.want {
				t.Errorf("Contains(%+v) = %v, want %v", tt.pos, got, tt.want)
			}
		})
	}
}

func TestSpanIndexFor(t *testing.T) {
	spans := []Span{
		{Start: Anchor{1, 100}, End: Anchor{1, 300}},
		{Start: Anchor{1, 350}, End: Anchor{2, 801}},
	}
	tests := []struct {
		name string
		pos  Anchor
		want int
	}{
		{"inside first", Anchor{1, 200}, 0},
		{"inside second", Anchor{2, 400}, 1},
		{"gap between spans falls to earlier", Anchor{1, 320}, 0},
		{"before all spans", Anchor{1, 10}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := spanIndexFor(spans, tt.pos); got != tt.want {
				t.Errorf("spanIndexFor(%+v) = %d, want %d", tt.pos, got, tt.want)
			}
		})
	}
}

func TestQuestionIndexFor(t *testing.T) {
	qAnchors := []Anchor{{1, 50}, {1, 300}}
	tests := []struct {
		name string
		pos  Anchor
		want int
	}{
		{"between first and second", Anchor{1, 120}, 0},
		{"below last", Anchor{2, 40}, 1},
		{"above first", Anchor{1, 10}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := questionIndexFor(qAnchors, tt.pos); got != tt.want {
				t.Errorf("questionIndexFor(%+v) = %d, want %d", tt.pos, got, tt.want)
			}
		})
	}
}

func TestCollectAnchors(t *testing.T) {
	pages := []pdf.Page{{
		Number: 1,
		Lines: []pdf.Line{
			{Y: 20, Text: "Final Exam"},
			{Y: 50, Text: "Question 1"},
			{Y: 100, Text: "Answer: forty-two"},
			{Y: 200, Text: "Q2: follow-up"},
			{Y: 250, Text: "Answer. see diagram"},
		},
	}}
	qs, as := collectAnchors(pages)
	if len(qs) != 2 || len(as) != 2 {
		t.Fatalf("got %d question and %d answer anchors, want 2 and 2", len(qs), len(as))
	}
	if qs[0].Y != 50 || qs[1].Y != 200 {
		t.Errorf("question anchors at %v, want y=50 and y=200", qs)
	}
}
