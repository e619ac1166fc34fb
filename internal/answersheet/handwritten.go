package answersheet

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/gradeflow/gradeflow/internal/llm/prompts"
	"github.com/gradeflow/gradeflow/internal/model"
)

// VisionModel issues one multimodal chat request: a text prompt plus page
// images, returning the model's raw text response.
type VisionModel interface {
	VisionChat(ctx context.Context, prompt string, pngPages [][]byte) (string, error)
}

// PageRenderer rasterizes a PDF's pages to PNG. Satisfied by pdf.Renderer.
type PageRenderer interface {
	RenderPNG(path string) ([][]byte, error)
}

var (
	perQuestionConfRe = regexp.MustCompile(`(?i)QUESTION\s+(\d+)\s+CONFIDENCE[:\s]+(\d+(?:\.\d+)?)`)
	totalConfRe       = regexp.MustCompile(`(?i)TOTAL\s+CONFIDENCE\s+SCORE[:\s]+(\d+(?:\.\d+)?)`)
	outOfHundredRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*/\s*100`)
	questionStartRe   = regexp.MustCompile(`^(\d+)\.\s+(.*)$`)
)

// confidenceAnchors mark the start of the overall confidence section; the
// earliest occurrence wins.
var confidenceAnchors = []string{
	"**CONFIDENCE SCORES**",
	"CONFIDENCE SCORES:",
	"--- CONFIDENCE SCORES ---",
}

// HandwrittenParser transcribes scanned answer sheets with a multimodal
// model and parses the structured response.
type HandwrittenParser struct {
	Model    VisionModel
	Renderer PageRenderer
}

// Extract renders the sheet's pages, issues a single transcription request
// with mark-scheme hints when available, and parses the response under
// strict sequential question ordering. When the response holds no
// recognizable questions the answer list is empty but the confidence report
// and raw response are preserved for debugging.
func (hp *HandwrittenParser) Extract(ctx context.Context, path string, scheme []model.MarkSchemeQuestion) (model.ExtractedSheet, model.SheetConfidence, error) {
	var sheet model.ExtractedSheet
	var conf model.SheetConfidence

	pages, err := hp.Renderer.RenderPNG(path)
	if err != nil {
		return sheet, conf, fmt.Errorf("render answer sheet: %w", err)
	}

	prompt, err := prompts.BuildTranscribe(transcribeData(scheme))
	if err != nil {
		return sheet, conf, err
	}

	raw, err := hp.Model.VisionChat(ctx, prompt, pages)
	if err != nil {
		return sheet, conf, err
	}

	answers, conf := ParseTranscript(raw)
	if len(answers) == 0 {
		slog.Warn("handwritten transcript has no sequential questions", "response_bytes", len(raw))
		if conf.Details == "" {
			conf.Details = raw
		}
	}
	sheet.Answers = answers
	return sheet, conf, nil
}

// transcribeData derives prompt hints from the mark scheme: the expected
// question list plus a short free-form expansion.
func transcribeData(scheme []model.MarkSchemeQuestion) prompts.TranscribeData {
	data := prompts.TranscribeData{}
	if len(scheme) == 0 {
		return data
	}
	data.HasHints = true
	for _, q := range scheme {
		data.Questions = append(data.Questions, prompts.QuestionHint{
			Number: q.QuestionNumber,
			Text:   truncate(q.QuestionText, 120),
		})
	}
	data.EvalHints = fmt.Sprintf(
		"The sheet should contain up to %d answers, numbered %d through %d. Answers may span multiple pages; page breaks do not end an answer.",
		len(scheme), scheme[0].QuestionNumber, scheme[len(scheme)-1].QuestionNumber)
	return data
}

// ParseTranscript splits a transcription response into sequential answers
// and its confidence report.
//
// Ordering is strict: the parser expects question 1, then 2, then 3, and so
// on. A header whose number is not the next expected one is dropped with a
// log entry, together with its body; duplicates are dropped the same way.
func ParseTranscript(raw string) ([]model.ExtractedAnswer, model.SheetConfidence) {
	// Per-question confidence is read from the entire response before any
	// trimming, so scores survive even when the model interleaves them.
	perQuestion := make(map[int]string)
	for _, m := range perQuestionConfRe.FindAllStringSubmatch(raw, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			perQuestion[n] = m[2]
		}
	}

	body, conf := splitConfidence(raw)

	type pending struct {
		number int
		lines  []string
	}
	var kept []pending
	var current *pending
	collecting := false

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)

		if m := questionStartRe.FindStringSubmatch(trimmed); m != nil {
			num, _ := strconv.Atoi(m[1])
			expected := len(kept) + 1
			if num != expected {
				slog.Debug("dropping out-of-sequence question", "got", num, "expected", expected)
				current = nil
				collecting = false
				continue
			}
			kept = append(kept, pending{number: num})
			current = &kept[len(kept)-1]
			collecting = true
			if rest := strings.TrimSpace(m[2]); rest != "" {
				current.lines = append(current.lines, rest)
			}
			continue
		}

		// A bare --- line is a hard question breaker.
		if trimmed == "---" {
			current = nil
			collecting = false
			continue
		}

		if collecting && current != nil {
			current.lines = append(current.lines, line)
		}
	}

	answers := make([]model.ExtractedAnswer, 0, len(kept))
	for _, p := range kept {
		text := strings.TrimSpace(strings.Join(p.lines, "\n"))
		score, ok := perQuestion[p.number]
		if !ok {
			score = "N/A"
		}
		answers = append(answers, model.ExtractedAnswer{
			QuestionNumber:  strconv.Itoa(p.number),
			StudentAnswer:   &text,
			ConfidenceScore: score,
		})
	}
	return answers, conf
}

// splitConfidence locates the overall confidence section, captures it as
// details, extracts the total score, and returns the working body with the
// section removed.
func splitConfidence(raw string) (string, model.SheetConfidence) {
	conf := model.SheetConfidence{Score: "N/A"}

	idx := -1
	for _, anchor := range confidenceAnchors {
		if i := strings.Index(raw, anchor); i >= 0 && (idx < 0 || i < idx) {
			idx = i
		}
	}
	if idx < 0 {
		return raw, conf
	}

	conf.Details = raw[idx:]
	if m := totalConfRe.FindStringSubmatch(conf.Details); m != nil {
		conf.Score = m[1]
	} else if m := outOfHundredRe.FindStringSubmatch(conf.Details); m != nil {
		conf.Score = m[1]
	}
	return raw[:idx], conf
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
