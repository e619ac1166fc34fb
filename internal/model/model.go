package model

import "time"

// SheetMode selects how an uploaded answer sheet is parsed.
type SheetMode string

const (
	// SheetTyped parses the sheet's text layer directly.
	SheetTyped SheetMode = "typed"
	// SheetHandwritten renders pages and transcribes them with a multimodal model.
	SheetHandwritten SheetMode = "handwritten"
	// SheetAuto routes by text-layer coverage.
	SheetAuto SheetMode = "auto"
)

// Evaluation is one grading session: a mark scheme plus the answer sheets
// uploaded against it. Created when the mark scheme is uploaded, mutated by
// sheet uploads and by the evaluation engine, never deleted implicitly.
type Evaluation struct {
	ID                 string            `json:"evaluation_id"`
	CourseID           string            `json:"course_id"`
	AssistantID        string            `json:"evaluation_assistant_id,omitempty"`
	VectorStoreID      string            `json:"vector_store_id,omitempty"`
	MarkSchemeFileID   string            `json:"mark_scheme_file_id"`
	AnswerSheetFileIDs []string          `json:"answer_sheet_file_ids"`
	Result             *EvaluationResult `json:"result,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// MarkSchemeQuestion is one normalized question of a mark scheme.
type MarkSchemeQuestion struct {
	QuestionNumber int      `json:"question_number"`
	QuestionText   string   `json:"question_text"`
	AnswerTemplate string   `json:"answer_template"`
	MarkingScheme  []string `json:"marking_scheme"`
}

// ExtractedAnswer is one question's answer pulled out of a sheet. StudentAnswer
// may embed tables as text and images as opaque references ("[Image: <handle>]").
// ConfidenceScore is set only by the handwritten parser: a number 0..100 in
// string form, or "N/A".
type ExtractedAnswer struct {
	QuestionNumber  string  `json:"question_number"`
	StudentAnswer   *string `json:"student_answer"`
	ConfidenceScore string  `json:"confidence_score,omitempty"`
}

// ExtractedSheet is the parsed form of one student's submission. Answers are
// sorted by ascending question number and strictly sequential from 1.
type ExtractedSheet struct {
	FileID  string            `json:"file_id"`
	Email   string            `json:"email,omitempty"`
	Answers []ExtractedAnswer `json:"answers"`
}

// SheetConfidence is the handwritten parser's overall transcription confidence.
// Score is 0..100 in string form or "N/A"; Details keeps the raw confidence
// section for debugging.
type SheetConfidence struct {
	Score   string `json:"score"`
	Details string `json:"details,omitempty"`
}

// AnswerScore is the graded outcome of one question for one student.
type AnswerScore struct {
	QuestionNumber string  `json:"question_number"`
	QuestionText   string  `json:"question_text"`
	StudentAnswer  *string `json:"student_answer"`
	CorrectAnswer  *string `json:"correct_answer"`
	Score          float64 `json:"score"`
	MaxScore       float64 `json:"max_score"`
	Feedback       string  `json:"feedback"`
}

// StudentResult is one student's graded sheet. TotalScore is the sum of the
// per-answer scores; MaxTotalScore the sum of the per-answer maxima.
type StudentResult struct {
	FileID        string        `json:"file_id"`
	Email         string        `json:"email,omitempty"`
	Answers       []AnswerScore `json:"answers"`
	TotalScore    float64       `json:"total_score"`
	MaxTotalScore float64       `json:"max_total_score"`
}

// EvaluationResult is the engine's output for one evaluation.
type EvaluationResult struct {
	EvaluationID string          `json:"evaluation_id"`
	Students     []StudentResult `json:"students"`
}

// TaskStatus is the lifecycle state of a background task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether the status is sticky.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// Task is one long-running job tracked by the task manager.
type Task struct {
	ID          string            `json:"task_id"`
	Type        string            `json:"task_type"`
	Status      TaskStatus        `json:"status"`
	Result      any               `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// User is the minimal identity record needed for notifications.
type User struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}
