// Package prompts renders the versioned prompt templates used by the
// transcription and evaluation calls.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"sync"
	"text/template"
)

//go:embed templates/*.txt
var templateFS embed.FS

// Template versions. Bump when the wording changes in a way that affects
// parsing of the response.
const (
	TranscribeVersion = "v2"
	EvaluateVersion   = "v1"
)

var (
	loadOnce sync.Once
	loadErr  error
	tmpls    map[string]*template.Template
)

func load() error {
	loadOnce.Do(func() {
		tmpls = make(map[string]*template.Template)
		names := []string{
			"transcribe_" + TranscribeVersion,
			"evaluate_" + EvaluateVersion,
		}
		for _, name := range names {
			content, err := templateFS.ReadFile("templates/" + name + ".txt")
			if err != nil {
				loadErr = fmt.Errorf("read prompt template %s: %w", name, err)
				return
			}
			t, err := template.New(name).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			tmpls[name] = t
		}
	})
	return loadErr
}

// QuestionHint is one expected question passed to the transcription prompt.
type QuestionHint struct {
	Number int
	Text   string
}

// TranscribeData fills the handwritten transcription template.
type TranscribeData struct {
	HasHints  bool
	Questions []QuestionHint
	EvalHints string
}

// EvaluateData fills the evaluation template.
type EvaluateData struct {
	EvaluationID     string
	MarkSchemeJSON   string
	AnswerSheetsJSON string
}

// BuildTranscribe renders the handwritten transcription prompt.
func BuildTranscribe(data TranscribeData) (string, error) {
	return render("transcribe_"+TranscribeVersion, data)
}

// BuildEvaluate renders the evaluation prompt.
func BuildEvaluate(data EvaluateData) (string, error) {
	return render("evaluate_"+EvaluateVersion, data)
}

func render(name string, data any) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpls[name].Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
