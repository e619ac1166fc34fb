// Package store is the persistence boundary: evaluation records, users, and
// uploaded-asset metadata in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gradeflow/gradeflow/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		course_id TEXT NOT NULL DEFAULT '',
		assistant_id TEXT NOT NULL DEFAULT '',
		vector_store_id TEXT NOT NULL DEFAULT '',
		mark_scheme_file_id TEXT NOT NULL,
		answer_sheet_file_ids TEXT NOT NULL DEFAULT '[]',
		result TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assets (
		file_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		sheet_mode TEXT NOT NULL DEFAULT 'auto',
		created_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateEvaluation inserts a new evaluation record. A missing ID is
// generated.
func (s *Store) CreateEvaluation(ev model.Evaluation) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	sheetIDs, err := json.Marshal(ev.AnswerSheetFileIDs)
	if err != nil {
		return "", fmt.Errorf("encode answer sheet ids: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO evaluations (id, course_id, assistant_id, vector_store_id, mark_scheme_file_id, answer_sheet_file_ids, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.CourseID, ev.AssistantID, ev.VectorStoreID, ev.MarkSchemeFileID, string(sheetIDs), ev.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return ev.ID, nil
}

// GetEvaluation returns an evaluation by ID; sql.ErrNoRows when unknown.
func (s *Store) GetEvaluation(id string) (model.Evaluation, error) {
	var ev model.Evaluation
	var sheetIDs string
	var result sql.NullString
	err := s.db.QueryRow(
		`SELECT id, course_id, assistant_id, vector_store_id, mark_scheme_file_id, answer_sheet_file_ids, result, created_at
		 FROM evaluations WHERE id = ?`, id,
	).Scan(&ev.ID, &ev.CourseID, &ev.AssistantID, &ev.VectorStoreID, &ev.MarkSchemeFileID, &sheetIDs, &result, &ev.CreatedAt)
	if err != nil {
		return ev, err
	}
	if err := json.Unmarshal([]byte(sheetIDs), &ev.AnswerSheetFileIDs); err != nil {
		return ev, fmt.Errorf("decode answer sheet ids: %w", err)
	}
	if result.Valid {
		ev.Result = &model.EvaluationResult{}
		if err := json.Unmarshal([]byte(result.String), ev.Result); err != nil {
			return ev, fmt.Errorf("decode result: %w", err)
		}
	}
	return ev, nil
}

// AppendAnswerSheet adds a file ID to the evaluation's ordered sheet list.
func (s *Store) AppendAnswerSheet(evaluationID, fileID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	if err := tx.QueryRow(
		`SELECT answer_sheet_file_ids FROM evaluations WHERE id = ?`, evaluationID,
	).Scan(&raw); err != nil {
		return err
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return fmt.Errorf("decode answer sheet ids: %w", err)
	}
	ids = append(ids, fileID)
	updated, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode answer sheet ids: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE evaluations SET answer_sheet_file_ids = ? WHERE id = ?`, string(updated), evaluationID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// SetAssistant records the LLM collaborator handles for an evaluation.
func (s *Store) SetAssistant(evaluationID, assistantID, vectorStoreID string) error {
	return s.update(
		`UPDATE evaluations SET assistant_id = ?, vector_store_id = ? WHERE id = ?`,
		assistantID, vectorStoreID, evaluationID,
	)
}

// SetResult attaches a grading result to the evaluation.
func (s *Store) SetResult(evaluationID string, result *model.EvaluationResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return s.update(`UPDATE evaluations SET result = ? WHERE id = ?`, string(encoded), evaluationID)
}

// ClearResult removes a persisted result. Used when a cancellation wins the
// race against a run that already finished grading.
func (s *Store) ClearResult(evaluationID string) error {
	return s.update(`UPDATE evaluations SET result = NULL WHERE id = ?`, evaluationID)
}

func (s *Store) update(query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecordAsset stores metadata for an uploaded file.
func (s *Store) RecordAsset(fileID, name, kind string, mode model.SheetMode) error {
	_, err := s.db.Exec(
		`INSERT INTO assets (file_id, name, kind, sheet_mode, created_at) VALUES (?, ?, ?, ?, ?)`,
		fileID, name, kind, string(mode), time.Now().UTC(),
	)
	return err
}

// AssetName returns the display name of an uploaded file.
func (s *Store) AssetName(fileID string) (string, error) {
	var name string
	err := s.db.QueryRow(`SELECT name FROM assets WHERE file_id = ?`, fileID).Scan(&name)
	return name, err
}

// AssetMode returns the sheet mode recorded at upload time.
func (s *Store) AssetMode(fileID string) (model.SheetMode, error) {
	var mode string
	err := s.db.QueryRow(`SELECT sheet_mode FROM assets WHERE file_id = ?`, fileID).Scan(&mode)
	return model.SheetMode(mode), err
}

// CreateUser inserts a user. A missing ID is generated.
func (s *Store) CreateUser(u model.User) (string, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, display_name, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// UserEmail returns the email for a user ID.
func (s *Store) UserEmail(id string) (string, error) {
	var email string
	err := s.db.QueryRow(`SELECT email FROM users WHERE id = ?`, id).Scan(&email)
	return email, err
}
