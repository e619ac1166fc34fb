package answersheet

import (
	"context"
	"strings"
	"testing"

	"github.com/gradeflow/gradeflow/internal/model"
)

type fakeVision struct {
	prompt   string
	pages    int
	response string
	err      error
}

func (f *fakeVision) VisionChat(_ context.Context, prompt string, pngPages [][]byte) (string, error) {
	f.prompt = prompt
	f.pages = len(pngPages)
	return f.response, f.err
}

type fakeRenderer struct {
	pages [][]byte
	err   error
}

func (f *fakeRenderer) RenderPNG(string) ([][]byte, error) {
	return f.pages, f.err
}

func TestParseTranscriptSequential(t *testing.T) {
	raw := strings.Join([]string{
		"1. The capital is Paris.",
		"It has two million residents.",
		"---",
		"2. Photosynthesis converts light to energy.",
		"---",
		"**CONFIDENCE SCORES**",
		"QUESTION 1 CONFIDENCE: 92",
		"QUESTION 2 CONFIDENCE: 78",
		"TOTAL CONFIDENCE SCORE: 85/100",
	}, "\n")

	answers, conf := ParseTranscript(raw)
	if len(answers) != 2 {
		t.Fatalf("got %d answers, want 2", len(answers))
	}
	if got := *answers[0].StudentAnswer; got != "The capital is Paris.\nIt has two million residents." {
		t.Errorf("answer 1 = %q", got)
	}
	if answers[0].ConfidenceScore != "92" || answers[1].ConfidenceScore != "78" {
		t.Errorf("confidence scores = %q, %q, want 92 and 78",
			answers[0].ConfidenceScore, answers[1].ConfidenceScore)
	}
	if conf.Score != "85" {
		t.Errorf("overall confidence = %q, want 85", conf.Score)
	}
	if !strings.HasPrefix(conf.Details, "**CONFIDENCE SCORES**") {
		t.Errorf("details = %q, want confidence section", conf.Details)
	}
}

func TestParseTranscriptOutOfOrder(t *testing.T) {
	raw := strings.Join([]string{
		"1. first answer",
		"---",
		"3. third answer",
		"---",
		"2. second answer",
		"---",
		"4. fourth answer",
	}, "\n")

	answers, _ := ParseTranscript(raw)
	if len(answers) != 2 {
		t.Fatalf("got %d answers, want 2", len(answers))
	}
	if answers[0].QuestionNumber != "1" || answers[1].QuestionNumber != "2" {
		t.Errorf("question numbers = %q, %q, want 1 and 2",
			answers[0].QuestionNumber, answers[1].QuestionNumber)
	}
	if got := *answers[1].StudentAnswer; got != "second answer" {
		t.Errorf("answer 2 = %q, want the later in-sequence section", got)
	}
	if answers[0].ConfidenceScore != "N/A" {
		t.Errorf("confidence = %q, want N/A when no report present", answers[0].ConfidenceScore)
	}
}

func TestParseTranscriptDuplicateHeader(t *testing.T) {
	raw := strings.Join([]string{
		"1. alpha",
		"---",
		"2. beta",
		"---",
		"2. beta again",
		"---",
		"3. gamma",
	}, "\n")

	answers, _ := ParseTranscript(raw)
	if len(answers) != 3 {
		t.Fatalf("got %d answers, want 3", len(answers))
	}
	if got := *answers[1].StudentAnswer; got != "beta" {
		t.Errorf("answer 2 = %q, duplicate must not overwrite", got)
	}
	if got := *answers[2].StudentAnswer; got != "gamma" {
		t.Errorf("answer 3 = %q", got)
	}
}

func TestParseTranscriptBreakerStopsCollecting(t *testing.T) {
	raw := strings.Join([]string{
		"1. kept line",
		"---",
		"stray commentary between answers",
		"2. next",
	}, "\n")

	answers, _ := ParseTranscript(raw)
	if len(answers) != 2 {
		t.Fatalf("got %d answers, want 2", len(answers))
	}
	if got := *answers[0].StudentAnswer; got != "kept line" {
		t.Errorf("answer 1 = %q, stray text after --- must not attach", got)
	}
	if got := *answers[1].StudentAnswer; got != "next" {
		t.Errorf("answer 2 = %q", got)
	}
}

func TestParseTranscriptNoQuestions(t *testing.T) {
	raw := "I cannot read this document.\n**CONFIDENCE SCORES**\nTOTAL CONFIDENCE SCORE: 10/100"
	answers, conf := ParseTranscript(raw)
	if len(answers) != 0 {
		t.Fatalf("got %d answers, want 0", len(answers))
	}
	if conf.Score != "10" {
		t.Errorf("overall confidence = %q, want 10", conf.Score)
	}
}

func TestSplitConfidenceFallbackScore(t *testing.T) {
	raw := "1. answer\nCONFIDENCE SCORES:\nOverall the transcription is 62/100 reliable."
	_, conf := splitConfidence(raw)
	if conf.Score != "62" {
		t.Errorf("score = %q, want 62 from n/100 form", conf.Score)
	}
}

func TestHandwrittenExtract(t *testing.T) {
	vision := &fakeVision{response: strings.Join([]string{
		"1. mitochondria",
		"---",
		"**CONFIDENCE SCORES**",
		"QUESTION 1 CONFIDENCE: 90",
		"TOTAL CONFIDENCE SCORE: 90",
	}, "\n")}
	hp := &HandwrittenParser{
		Model:    vision,
		Renderer: &fakeRenderer{pages: [][]byte{{1}, {2}}},
	}
	scheme := []model.MarkSchemeQuestion{
		{QuestionNumber: 1, QuestionText: "Name the powerhouse of the cell."},
		{QuestionNumber: 2, QuestionText: "Explain osmosis."},
	}

	sheet, conf, err := hp.Extract(context.Background(), "sheet.pdf", scheme)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if vision.pages != 2 {
		t.Errorf("model saw %d page images, want 2", vision.pages)
	}
	if !strings.Contains(vision.prompt, "EXPECTED QUESTIONS") {
		t.Errorf("prompt missing question hints:\n%s", vision.prompt)
	}
	if !strings.Contains(vision.prompt, "1. Name the powerhouse of the cell.") {
		t.Errorf("prompt missing scheme question text:\n%s", vision.prompt)
	}
	if len(sheet.Answers) != 1 {
		t.Fatalf("got %d answers, want 1", len(sheet.Answers))
	}
	if got := *sheet.Answers[0].StudentAnswer; got != "mitochondria" {
		t.Errorf("answer = %q", got)
	}
	if conf.Score != "90" {
		t.Errorf("overall confidence = %q, want 90", conf.Score)
	}
}

func TestHandwrittenExtractUnreadable(t *testing.T) {
	vision := &fakeVision{response: "The pages are blank."}
	hp := &HandwrittenParser{
		Model:    vision,
		Renderer: &fakeRenderer{pages: [][]byte{{1}}},
	}

	sheet, conf, err := hp.Extract(context.Background(), "sheet.pdf", nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(sheet.Answers) != 0 {
		t.Fatalf("got %d answers, want 0", len(sheet.Answers))
	}
	if conf.Details != "The pages are blank." {
		t.Errorf("details = %q, want raw response preserved", conf.Details)
	}
	if !strings.Contains(vision.prompt, "Transcribe every answer") {
		t.Errorf("prompt missing transcription task:\n%s", vision.prompt)
	}
}
