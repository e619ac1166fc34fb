// Package handler exposes the evaluation pipeline over a JSON HTTP API.
package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gradeflow/gradeflow/internal/model"
	"github.com/gradeflow/gradeflow/internal/pipeline"
	"github.com/gradeflow/gradeflow/internal/storage"
	"github.com/gradeflow/gradeflow/internal/store"
	"github.com/gradeflow/gradeflow/internal/task"
)

const maxUploadBytes = 64 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store *store.Store
	blobs storage.BlobStore
	pipe  *pipeline.Pipeline
	tasks *task.Manager
}

// New creates a new Handler.
func New(s *store.Store, b storage.BlobStore, p *pipeline.Pipeline, t *task.Manager) *Handler {
	return &Handler{store: s, blobs: b, pipe: p, tasks: t}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/evaluations", h.handleCreateEvaluation)
		r.Get("/evaluations/{evaluationID}", h.handleGetEvaluation)
		r.Post("/evaluations/{evaluationID}/sheets", h.handleUploadSheet)
		r.Post("/evaluations/{evaluationID}/run", h.handleRunEvaluation)
		r.Get("/tasks/{taskID}", h.handleGetTask)
		r.Post("/tasks/{taskID}/cancel", h.handleCancelTask)
	})
}

// handleCreateEvaluation accepts a multipart mark scheme upload, creates the
// evaluation record, and schedules a mark scheme sanity check.
func (h *Handler) handleCreateEvaluation(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing mark scheme file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	fileID, err := h.blobs.Put(header.Filename, file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.store.RecordAsset(fileID, header.Filename, "mark_scheme", model.SheetAuto); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	evaluationID, err := h.store.CreateEvaluation(model.Evaluation{
		CourseID:         r.FormValue("course_id"),
		MarkSchemeFileID: fileID,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	taskID := h.pipe.StartMarkSchemeCheck(evaluationID, fileID)
	slog.Info("evaluation created", "evaluation_id", evaluationID, "mark_scheme", header.Filename)

	respondJSON(w, http.StatusCreated, map[string]string{
		"evaluation_id":       evaluationID,
		"mark_scheme_file_id": fileID,
		"check_task_id":       taskID,
	})
}

// handleUploadSheet attaches one answer sheet to an evaluation. The optional
// mode field forces typed or handwritten parsing; the default is auto.
func (h *Handler) handleUploadSheet(w http.ResponseWriter, r *http.Request) {
	evaluationID := chi.URLParam(r, "evaluationID")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing answer sheet file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	mode := model.SheetAuto
	switch m := model.SheetMode(r.FormValue("mode")); m {
	case "", model.SheetAuto:
	case model.SheetTyped, model.SheetHandwritten:
		mode = m
	default:
		http.Error(w, "mode must be typed, handwritten, or auto", http.StatusBadRequest)
		return
	}

	fileID, err := h.blobs.Put(header.Filename, file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.store.RecordAsset(fileID, header.Filename, "answer_sheet", mode); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.store.AppendAnswerSheet(evaluationID, fileID); err != nil {
		httpError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"file_id": fileID})
}

// handleRunEvaluation schedules the grading run and returns its task id.
func (h *Handler) handleRunEvaluation(w http.ResponseWriter, r *http.Request) {
	evaluationID := chi.URLParam(r, "evaluationID")

	var body struct {
		UserID string `json:"user_id"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	if _, err := h.store.GetEvaluation(evaluationID); err != nil {
		httpError(w, err)
		return
	}

	taskID := h.pipe.StartEvaluation(evaluationID, body.UserID)
	respondJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (h *Handler) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	ev, err := h.store.GetEvaluation(chi.URLParam(r, "evaluationID"))
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ev)
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t := h.tasks.Get(chi.URLParam(r, "taskID"))
	if t == nil {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handler) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if h.tasks.Get(taskID) == nil {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	h.tasks.MarkCancelled(taskID)
	respondJSON(w, http.StatusOK, h.tasks.Get(taskID))
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func httpError(w http.ResponseWriter, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
