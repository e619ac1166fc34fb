// Package markscheme parses structured mark schemes out of PDFs into a
// canonical question list. Three formats are recognized, tried in order:
// a JSON array embedded in the document (with repair for unescaped quotes),
// key-value question blocks, and a loose bullet layout.
package markscheme

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/gradeflow/gradeflow/internal/errdefs"
	"github.com/gradeflow/gradeflow/internal/model"
	"github.com/gradeflow/gradeflow/internal/pdf"
)

var bannerRe = regexp.MustCompile(`(?i)^page\s+\d+(\s*(of|/)\s*\d+)?$`)

// ExtractFile opens a PDF and extracts its mark scheme.
func ExtractFile(path string) ([]model.MarkSchemeQuestion, error) {
	pages, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	return Extract(pages)
}

// Extract resolves the mark scheme from already-parsed pages. The first
// format pass that yields a valid result wins; an empty or invalid result
// from every pass is an ExtractionError.
func Extract(pages []pdf.Page) ([]model.MarkSchemeQuestion, error) {
	var sb strings.Builder
	for i, p := range pages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(p.Text)
	}
	text := sb.String()

	passes := []struct {
		name string
		fn   func(string) []model.MarkSchemeQuestion
	}{
		{"json", parseJSONEmbedded},
		{"keyvalue", parseKeyValue},
		{"bullets", parseBullets},
	}
	for _, pass := range passes {
		qs := pass.fn(text)
		if len(qs) == 0 {
			continue
		}
		if err := Validate(qs); err != nil {
			slog.Debug("mark scheme pass produced invalid result", "pass", pass.name, "error", err)
			continue
		}
		slog.Debug("mark scheme extracted", "pass", pass.name, "questions", len(qs))
		return qs, nil
	}
	return nil, errdefs.Extractionf("no mark scheme recognized in document")
}

// Validate checks the normalized invariants: a non-empty list where every
// item has question text and a positive question number.
func Validate(qs []model.MarkSchemeQuestion) error {
	if len(qs) == 0 {
		return errdefs.Extractionf("mark scheme is empty")
	}
	for i, q := range qs {
		if q.QuestionNumber < 1 {
			return errdefs.Extractionf("item %d: question_number %d is not a positive integer", i, q.QuestionNumber)
		}
		if strings.TrimSpace(q.QuestionText) == "" {
			return errdefs.Extractionf("question %d: empty question_text", q.QuestionNumber)
		}
	}
	return nil
}

// stripBanners removes pagination banners and markdown code fences.
func stripBanners(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if bannerRe.MatchString(trimmed) {
			continue
		}
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// MaxScore sums the marks stated in a question's rubric bullets, e.g.
// "A (2): ..." contributes 2. Bullets without a parenthesized mark count
// contribute nothing.
func MaxScore(q model.MarkSchemeQuestion) float64 {
	total := 0.0
	for _, b := range q.MarkingScheme {
		if m := marksRe.FindStringSubmatch(b); m != nil {
			total += parseFloatDefault(m[1], 0)
		}
	}
	return total
}

var marksRe = regexp.MustCompile(`\((\d+(?:\.\d+)?)\s*(?:marks?)?\)`)
