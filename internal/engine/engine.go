// Package engine grades extracted answer sheets against a normalized mark
// scheme by prompting an LLM assistant under a strict JSON schema.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gradeflow/gradeflow/internal/errdefs"
	"github.com/gradeflow/gradeflow/internal/llm/prompts"
	"github.com/gradeflow/gradeflow/internal/model"
)

// DefaultBatchSize is how many answer sheets one evaluation request carries.
// Chunking keeps large classes inside the model's token budget.
const DefaultBatchSize = 10

// LLM runs one assistant thread to completion. Satisfied by llm.Client.
type LLM interface {
	RunThread(ctx context.Context, assistantID, prompt, schemaName string, schema json.RawMessage) (string, error)
}

// Engine composes evaluation prompts and validates the model's responses.
type Engine struct {
	llm LLM
}

func New(llm LLM) *Engine {
	return &Engine{llm: llm}
}

// Evaluate grades one batch of answer sheets in a single request. Student
// emails never travel to the model: they are held back by file_id and
// rejoined onto the parsed result.
func (e *Engine) Evaluate(ctx context.Context, evaluationID, assistantID string, scheme []model.MarkSchemeQuestion, sheets []model.ExtractedSheet) (*model.EvaluationResult, error) {
	emails := make(map[string]string, len(sheets))
	redacted := make([]model.ExtractedSheet, len(sheets))
	for i, s := range sheets {
		if s.Email != "" {
			emails[s.FileID] = s.Email
		}
		redacted[i] = s
		redacted[i].Email = ""
	}

	schemeJSON, err := json.Marshal(scheme)
	if err != nil {
		return nil, fmt.Errorf("encode mark scheme: %w", err)
	}
	sheetsJSON, err := json.Marshal(redacted)
	if err != nil {
		return nil, fmt.Errorf("encode answer sheets: %w", err)
	}

	prompt, err := prompts.BuildEvaluate(prompts.EvaluateData{
		EvaluationID:     evaluationID,
		MarkSchemeJSON:   string(schemeJSON),
		AnswerSheetsJSON: string(sheetsJSON),
	})
	if err != nil {
		return nil, err
	}

	raw, err := e.llm.RunThread(ctx, assistantID, prompt, resultSchemaName, ResultSchema)
	if err != nil {
		return nil, err
	}

	result, err := parseResult(raw)
	if err != nil {
		return nil, err
	}

	if result.EvaluationID == "" {
		result.EvaluationID = evaluationID
	}
	for i := range result.Students {
		student := &result.Students[i]
		if email, ok := emails[student.FileID]; ok {
			student.Email = email
		}
		student.TotalScore, student.MaxTotalScore = sumScores(student.Answers)
	}
	return result, nil
}

// EvaluateBatched chunks the sheets, grades each chunk, and merges the
// results by concatenating students in input order. A chunk that fails with
// a schema echo or a decode error is retried once before the error surfaces.
func (e *Engine) EvaluateBatched(ctx context.Context, evaluationID, assistantID string, scheme []model.MarkSchemeQuestion, sheets []model.ExtractedSheet, batchSize int) (*model.EvaluationResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	merged := &model.EvaluationResult{EvaluationID: evaluationID}
	for start := 0; start < len(sheets); start += batchSize {
		end := start + batchSize
		if end > len(sheets) {
			end = len(sheets)
		}
		chunk := sheets[start:end]

		result, err := e.Evaluate(ctx, evaluationID, assistantID, scheme, chunk)
		if err != nil && (errdefs.IsSchemaEcho(err) || errdefs.IsParse(err)) {
			slog.Warn("evaluation chunk failed, retrying once",
				"evaluation_id", evaluationID, "chunk_start", start, "error", err)
			result, err = e.Evaluate(ctx, evaluationID, assistantID, scheme, chunk)
		}
		if err != nil {
			return nil, fmt.Errorf("evaluate sheets %d-%d: %w", start, end-1, err)
		}
		merged.Students = append(merged.Students, result.Students...)
	}
	return merged, nil
}

// parseResult decodes the model's response, rejecting schema echoes and
// bodies without a students key.
func parseResult(raw string) (*model.EvaluationResult, error) {
	body := stripFences(raw)

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &top); err != nil {
		return nil, &errdefs.ParseError{Msg: "decode evaluation response", Err: err}
	}
	if _, hasProps := top["properties"]; hasProps {
		if _, hasType := top["type"]; hasType {
			return nil, &errdefs.SchemaEchoError{Msg: "model returned its response schema instead of a result"}
		}
	}
	if _, ok := top["students"]; !ok {
		return nil, &errdefs.ParseError{Msg: "evaluation response missing students"}
	}

	var result model.EvaluationResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return nil, &errdefs.ParseError{Msg: "decode evaluation result", Err: err}
	}
	return &result, nil
}

// sumScores recomputes the per-student totals from the answers; the model's
// arithmetic is not trusted.
func sumScores(answers []model.AnswerScore) (total, maxTotal float64) {
	for _, a := range answers {
		total += a.Score
		maxTotal += a.MaxScore
	}
	return total, maxTotal
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
