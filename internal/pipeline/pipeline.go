// Package pipeline orchestrates an evaluation run: mark scheme extraction,
// per-sheet answer extraction, LLM grading, persistence, and notification.
// Runs execute on the worker pool and report through the task manager.
package pipeline

import (
	"context"
	"log/slog"
	"os"

	"github.com/gradeflow/gradeflow/internal/answersheet"
	"github.com/gradeflow/gradeflow/internal/markscheme"
	"github.com/gradeflow/gradeflow/internal/model"
	"github.com/gradeflow/gradeflow/internal/pdf"
	"github.com/gradeflow/gradeflow/internal/task"
	"github.com/gradeflow/gradeflow/internal/worker"
)

// Task types registered with the task manager.
const (
	TaskEvaluation      = "evaluation"
	TaskMarkSchemeCheck = "mark_scheme_check"
)

// Store is the persistence the pipeline needs. Satisfied by store.Store.
type Store interface {
	GetEvaluation(id string) (model.Evaluation, error)
	SetResult(id string, result *model.EvaluationResult) error
	ClearResult(id string) error
	SetAssistant(id, assistantID, vectorStoreID string) error
	AssetMode(fileID string) (model.SheetMode, error)
}

// Assistants provisions the LLM collaborator for an evaluation. Satisfied by
// llm.Client. A nil provider reuses whatever assistant id the record holds.
type Assistants interface {
	UploadFile(ctx context.Context, name string, data []byte) (string, error)
	CreateVectorStore(ctx context.Context, name string, fileIDs []string) (string, error)
	EnsureAssistant(ctx context.Context, name, instructions string) (string, error)
}

// Blobs resolves file IDs to local paths. Satisfied by storage.FSStore.
type Blobs interface {
	Path(fileID string) (string, error)
}

// TypedSplitter parses a typed sheet's pages.
type TypedSplitter interface {
	Split(pages []pdf.Page) (model.ExtractedSheet, error)
}

// HandwrittenExtractor transcribes a scanned sheet.
type HandwrittenExtractor interface {
	Extract(ctx context.Context, path string, scheme []model.MarkSchemeQuestion) (model.ExtractedSheet, model.SheetConfidence, error)
}

// Evaluator grades extracted sheets.
type Evaluator interface {
	EvaluateBatched(ctx context.Context, evaluationID, assistantID string, scheme []model.MarkSchemeQuestion, sheets []model.ExtractedSheet, batchSize int) (*model.EvaluationResult, error)
}

// Notifier delivers outcome emails.
type Notifier interface {
	SendCompletion(evaluationID, userID string)
	SendError(evaluationID, userID string)
}

// Pipeline wires the evaluation components together.
type Pipeline struct {
	Store       Store
	Blobs       Blobs
	Assistants  Assistants
	Typed       TypedSplitter
	Handwritten HandwrittenExtractor
	Engine      Evaluator
	Tasks       *task.Manager
	Notifier    Notifier
	Pool        *worker.Pool
	BatchSize   int

	// OpenPDF defaults to pdf.Open.
	OpenPDF func(path string) ([]pdf.Page, error)
}

func (p *Pipeline) openPDF(path string) ([]pdf.Page, error) {
	if p.OpenPDF != nil {
		return p.OpenPDF(path)
	}
	return pdf.Open(path)
}

// StartEvaluation registers an evaluation task and schedules the run. The
// run outlives its caller (an HTTP handler returns 202 immediately), so it
// executes on its own context rather than the caller's.
func (p *Pipeline) StartEvaluation(evaluationID, userID string) string {
	taskID := p.Tasks.Create(TaskEvaluation, map[string]string{
		"evaluation_id": evaluationID,
		"user_id":       userID,
	})
	p.Pool.Submit(func() { p.runEvaluation(context.Background(), taskID, evaluationID, userID) })
	return taskID
}

func (p *Pipeline) runEvaluation(ctx context.Context, taskID, evaluationID, userID string) {
	p.Tasks.MarkProcessing(taskID)

	result, err := p.evaluate(ctx, evaluationID)
	if err != nil {
		slog.Error("evaluation failed", "evaluation_id", evaluationID, "task_id", taskID, "error", err)
		p.Tasks.MarkFailed(taskID, err.Error())
		p.notifyOutcome(taskID, evaluationID, userID)
		return
	}

	// A cancellation that raced the run wins: the result is discarded.
	if t := p.Tasks.Get(taskID); t != nil && t.Status == model.TaskCancelled {
		slog.Info("evaluation cancelled, discarding result", "evaluation_id", evaluationID, "task_id", taskID)
		return
	}

	if err := p.Store.SetResult(evaluationID, result); err != nil {
		slog.Error("persist result failed", "evaluation_id", evaluationID, "error", err)
		p.Tasks.MarkFailed(taskID, "failed to persist evaluation result")
		p.notifyOutcome(taskID, evaluationID, userID)
		return
	}

	// MarkCompleted is the decision point: losing it means a cancellation
	// landed while the result was being persisted, so undo the persist.
	if !p.Tasks.MarkCompleted(taskID, result) {
		slog.Info("evaluation cancelled, discarding result", "evaluation_id", evaluationID, "task_id", taskID)
		if err := p.Store.ClearResult(evaluationID); err != nil {
			slog.Warn("clear discarded result failed", "evaluation_id", evaluationID, "error", err)
		}
		return
	}
	p.notifyOutcome(taskID, evaluationID, userID)
}

func (p *Pipeline) evaluate(ctx context.Context, evaluationID string) (*model.EvaluationResult, error) {
	ev, err := p.Store.GetEvaluation(evaluationID)
	if err != nil {
		return nil, err
	}

	scheme, err := p.extractScheme(ev.MarkSchemeFileID)
	if err != nil {
		return nil, err
	}

	// Sheets are processed and graded in upload order.
	sheets := make([]model.ExtractedSheet, 0, len(ev.AnswerSheetFileIDs))
	for _, fileID := range ev.AnswerSheetFileIDs {
		sheet, err := p.extractSheet(ctx, fileID, scheme)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, sheet)
	}

	assistantID, err := p.ensureAssistant(ctx, ev)
	if err != nil {
		return nil, err
	}

	return p.Engine.EvaluateBatched(ctx, ev.ID, assistantID, scheme, sheets, p.BatchSize)
}

// assistantInstructions is the standing system prompt for the evaluation
// assistant; the grading details travel in the per-run message.
const assistantInstructions = "You grade student answer sheets against a provided mark scheme. " +
	"Follow the marking scheme bullets exactly, award partial credit where they allow it, " +
	"and respond only in the JSON format the request specifies."

// ensureAssistant returns the evaluation's assistant id, provisioning one on
// first use: the mark scheme is uploaded into a vector store and both handles
// are recorded on the evaluation.
func (p *Pipeline) ensureAssistant(ctx context.Context, ev model.Evaluation) (string, error) {
	if ev.AssistantID != "" || p.Assistants == nil {
		return ev.AssistantID, nil
	}

	vectorStoreID := ev.VectorStoreID
	if vectorStoreID == "" {
		if id, err := p.uploadSchemeStore(ctx, ev); err != nil {
			slog.Warn("vector store setup failed, continuing without retrieval",
				"evaluation_id", ev.ID, "error", err)
		} else {
			vectorStoreID = id
		}
	}

	assistantID, err := p.Assistants.EnsureAssistant(ctx, "gradeflow-evaluator", assistantInstructions)
	if err != nil {
		return "", err
	}
	if err := p.Store.SetAssistant(ev.ID, assistantID, vectorStoreID); err != nil {
		slog.Warn("persist assistant handles failed", "evaluation_id", ev.ID, "error", err)
	}
	return assistantID, nil
}

func (p *Pipeline) uploadSchemeStore(ctx context.Context, ev model.Evaluation) (string, error) {
	path, err := p.Blobs.Path(ev.MarkSchemeFileID)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	fileID, err := p.Assistants.UploadFile(ctx, ev.MarkSchemeFileID, data)
	if err != nil {
		return "", err
	}
	return p.Assistants.CreateVectorStore(ctx, "gradeflow-"+ev.ID, []string{fileID})
}

func (p *Pipeline) extractScheme(fileID string) ([]model.MarkSchemeQuestion, error) {
	path, err := p.Blobs.Path(fileID)
	if err != nil {
		return nil, err
	}
	pages, err := p.openPDF(path)
	if err != nil {
		return nil, err
	}
	return markscheme.Extract(pages)
}

func (p *Pipeline) extractSheet(ctx context.Context, fileID string, scheme []model.MarkSchemeQuestion) (model.ExtractedSheet, error) {
	path, err := p.Blobs.Path(fileID)
	if err != nil {
		return model.ExtractedSheet{}, err
	}
	pages, err := p.openPDF(path)
	if err != nil {
		return model.ExtractedSheet{}, err
	}

	mode := model.SheetAuto
	if m, err := p.Store.AssetMode(fileID); err == nil && m != "" {
		mode = m
	}
	mode = answersheet.Route(mode, pages)

	var sheet model.ExtractedSheet
	switch mode {
	case model.SheetHandwritten:
		var conf model.SheetConfidence
		sheet, conf, err = p.Handwritten.Extract(ctx, path, scheme)
		if err == nil {
			slog.Info("handwritten sheet transcribed", "file_id", fileID, "confidence", conf.Score)
		}
	default:
		sheet, err = p.Typed.Split(pages)
	}
	if err != nil {
		return model.ExtractedSheet{}, err
	}
	sheet.FileID = fileID
	return sheet, nil
}

// notifyOutcome reads the task's terminal state and sends the matching
// email. Cancelled tasks send nothing.
func (p *Pipeline) notifyOutcome(taskID, evaluationID, userID string) {
	if p.Notifier == nil || userID == "" {
		return
	}
	t := p.Tasks.Get(taskID)
	if t == nil {
		return
	}
	switch t.Status {
	case model.TaskCompleted:
		p.Notifier.SendCompletion(evaluationID, userID)
	case model.TaskFailed:
		p.Notifier.SendError(evaluationID, userID)
	}
}

// StartMarkSchemeCheck registers a sanity check of an uploaded mark scheme:
// it parses and validates, completing with the normalized questions.
func (p *Pipeline) StartMarkSchemeCheck(evaluationID, fileID string) string {
	taskID := p.Tasks.Create(TaskMarkSchemeCheck, map[string]string{
		"evaluation_id": evaluationID,
		"file_id":       fileID,
	})
	p.Pool.Submit(func() {
		p.Tasks.MarkProcessing(taskID)
		scheme, err := p.extractScheme(fileID)
		if err != nil {
			slog.Warn("mark scheme check failed", "file_id", fileID, "error", err)
			p.Tasks.MarkFailed(taskID, err.Error())
			return
		}
		p.Tasks.MarkCompleted(taskID, scheme)
	})
	return taskID
}
