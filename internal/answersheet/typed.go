// Package answersheet reconstructs per-question answers from student
// submissions: directly from the text layer for typed sheets, and through a
// multimodal model for handwritten scans.
package answersheet

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/gradeflow/gradeflow/internal/errdefs"
	"github.com/gradeflow/gradeflow/internal/model"
	"github.com/gradeflow/gradeflow/internal/pdf"
)

// ImageUploader stores an extracted answer image and returns an opaque
// handle for it.
type ImageUploader interface {
	UploadImage(data []byte) (string, error)
}

// Question headers for the three recognized layouts. Each pass locates the
// headers and slices the stitched text between consecutive header starts;
// the answer label is then found inside each block. RE2 has no lookahead,
// so boundaries are cut by index rather than matched.
var (
	qaPrimaryHeaderRe = regexp.MustCompile(`(?i)question\s*(\d+)[.:\s]?`)
	qaShortHeaderRe   = regexp.MustCompile(`(?i)\bq\s*(\d+)[.:\s]`)
	qaNumberHeaderRe  = regexp.MustCompile(`(?m)^(\d+)\.[ \t]+`)

	answerLabelRe = regexp.MustCompile(`(?im)^[ \t]*answer[ \t]*[:.]?[ \t]*`)
)

type qaPair struct {
	number   string
	question string
	answer   string
}

// TypedParser splits a typed answer sheet into per-question answers,
// attaching tables and in-answer images to the right question across page
// boundaries.
type TypedParser struct {
	Uploader    ImageUploader
	EmailDomain string // allowed domain for student email extraction
}

// Split parses the pages of one typed sheet.
func (tp *TypedParser) Split(pages []pdf.Page) (model.ExtractedSheet, error) {
	var sheet model.ExtractedSheet

	stitched := stitchText(pages)
	pairs := matchQA(stitched)

	qAnchors, aAnchors := collectAnchors(pages)
	spans := buildSpans(aAnchors, qAnchors, pages)

	if len(pairs) == 0 {
		// Image-only sheets: one synthesized question per embedded image
		// in document order.
		answers := synthesizeFromImages(pages, tp.Uploader)
		if len(answers) == 0 {
			return sheet, errdefs.Extractionf("no Q&A pairs found")
		}
		sheet.Answers = answers
		sheet.Email = extractEmail(pages, tp.EmailDomain)
		return sheet, nil
	}

	tablesBySpan := attachTables(pages, spans)
	imagesBySpan := attachImages(pages, qAnchors, aAnchors, spans)

	answers := make([]model.ExtractedAnswer, 0, len(pairs))
	for i, pair := range pairs {
		var b strings.Builder
		b.WriteString(strings.TrimSpace(pair.answer))
		for _, t := range tablesBySpan[i] {
			b.WriteString("\n")
			b.WriteString(serializeTable(t))
		}
		for _, img := range imagesBySpan[i] {
			b.WriteString("\n")
			b.WriteString(imageRef(img, tp.Uploader))
		}
		text := strings.TrimSpace(b.String())
		answers = append(answers, model.ExtractedAnswer{
			QuestionNumber: strconv.Itoa(i + 1),
			StudentAnswer:  &text,
		})
	}

	sheet.Answers = answers
	sheet.Email = extractEmail(pages, tp.EmailDomain)
	return sheet, nil
}

func stitchText(pages []pdf.Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n")
}

// matchQA runs the question/answer passes in order of specificity. The first
// header format that yields at least one complete pair wins.
func matchQA(text string) []qaPair {
	for _, re := range []*regexp.Regexp{qaPrimaryHeaderRe, qaShortHeaderRe, qaNumberHeaderRe} {
		if pairs := splitByHeaders(re, text); len(pairs) > 0 {
			return pairs
		}
	}
	return nil
}

// splitByHeaders cuts text into blocks at each question header and splits
// every block at its answer label. A block with no answer label carries no
// student answer and is dropped.
func splitByHeaders(header *regexp.Regexp, text string) []qaPair {
	locs := header.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	pairs := make([]qaPair, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		block := text[loc[1]:end]
		label := answerLabelRe.FindStringIndex(block)
		if label == nil {
			continue
		}
		pairs = append(pairs, qaPair{
			number:   text[loc[2]:loc[3]],
			question: strings.TrimSpace(block[:label[0]]),
			answer:   strings.TrimSpace(block[label[1]:]),
		})
	}
	return pairs
}

// attachTables assigns every table to the answer span holding its vertical
// center.
func attachTables(pages []pdf.Page, spans []Span) map[int][]pdf.Table {
	out := make(map[int][]pdf.Table)
	for _, p := range pages {
		for _, t := range p.Tables {
			center := Anchor{Page: p.Number, Y: (t.BBox.Top + t.BBox.Bottom) / 2}
			if idx := spanIndexFor(spans, center); idx >= 0 {
				out[idx] = append(out[idx], t)
			}
		}
	}
	return out
}

// attachImages assigns each image to a question by its position between
// consecutive question anchors, then discards any image that precedes the
// question's answer anchor: those belong to the printed question body, not
// the student's answer.
func attachImages(pages []pdf.Page, qAnchors, aAnchors []Anchor, spans []Span) map[int][]pdf.Image {
	out := make(map[int][]pdf.Image)
	if len(qAnchors) == 0 {
		return out
	}
	for _, p := range pages {
		for _, img := range p.Images {
			pos := Anchor{Page: p.Number, Y: img.YCenter()}
			qi := questionIndexFor(qAnchors, pos)
			if qi < 0 || qi >= len(aAnchors) {
				continue
			}
			if pos.Before(aAnchors[qi]) {
				continue
			}
			if qi < len(spans) {
				out[qi] = append(out[qi], img)
			}
		}
	}
	return out
}

// questionIndexFor finds the question whose region holds pos: between its
// anchor and the next question anchor, with the last question claiming
// everything at or below its anchor.
func questionIndexFor(qAnchors []Anchor, pos Anchor) int {
	for i := 0; i < len(qAnchors)-1; i++ {
		if !pos.Before(qAnchors[i]) && pos.Before(qAnchors[i+1]) {
			return i
		}
	}
	last := len(qAnchors) - 1
	if !pos.Before(qAnchors[last]) {
		return last
	}
	return -1
}

func synthesizeFromImages(pages []pdf.Page, up ImageUploader) []model.ExtractedAnswer {
	var answers []model.ExtractedAnswer
	for _, p := range pages {
		for _, img := range p.Images {
			text := imageRef(img, up)
			answers = append(answers, model.ExtractedAnswer{
				QuestionNumber: strconv.Itoa(len(answers) + 1),
				StudentAnswer:  &text,
			})
		}
	}
	return answers
}

// serializeTable flattens a table into the textual form carried inside a
// student answer.
func serializeTable(t pdf.Table) string {
	var b strings.Builder
	b.WriteString("[Table]\n")
	for _, row := range t.Data {
		b.WriteString(strings.Join(row, " | "))
		b.WriteString("\n")
	}
	b.WriteString("[End Table]")
	return b.String()
}

// imageRef uploads an image and renders its opaque reference; upload failure
// falls back to inline base64.
func imageRef(img pdf.Image, up ImageUploader) string {
	if up != nil {
		handle, err := up.UploadImage(img.Data)
		if err == nil {
			return fmt.Sprintf("[Image: %s]", handle)
		}
		slog.Warn("image upload failed, inlining base64", "error", err)
	}
	return fmt.Sprintf("[Image: %s]", base64.StdEncoding.EncodeToString(img.Data))
}
