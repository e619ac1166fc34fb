// Package task is the in-process registry of long-running jobs. All access
// goes through one mutex; throughput is low and simplicity wins.
package task

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gradeflow/gradeflow/internal/model"
)

// Manager tracks background tasks by id. The zero value is not usable; use
// NewManager.
type Manager struct {
	mu    sync.Mutex
	tasks map[string]*model.Task
	now   func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		tasks: make(map[string]*model.Task),
		now:   time.Now,
	}
}

// Create registers a new pending task and returns its id.
func (m *Manager) Create(taskType string, metadata map[string]string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	now := m.now()
	m.tasks[id] = &model.Task{
		ID:        id,
		Type:      taskType,
		Status:    model.TaskPending,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id
}

// Get returns a copy of the task, or nil when unknown. Metadata is copied
// too so callers cannot reach into the registry; Result is written once at
// the terminal transition and treated as read-only after that.
func (m *Manager) Get(id string) *model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil
	}
	copied := *t
	if t.Metadata != nil {
		copied.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			copied.Metadata[k] = v
		}
	}
	return &copied
}

// MarkProcessing moves a pending task to processing. started_at is set only
// on the first call.
func (m *Manager) MarkProcessing(id string) bool {
	return m.transition(id, model.TaskProcessing, nil, "")
}

// MarkCompleted finishes the task with a result. It reports whether the
// transition won: false means another terminal state (typically a
// cancellation) got there first and the result was not recorded.
func (m *Manager) MarkCompleted(id string, result any) bool {
	return m.transition(id, model.TaskCompleted, result, "")
}

// MarkFailed finishes the task with an error message.
func (m *Manager) MarkFailed(id string, errMsg string) bool {
	return m.transition(id, model.TaskFailed, nil, errMsg)
}

// MarkCancelled finishes the task as cancelled. In-flight work is not
// preempted; the worker's later terminal transition becomes a no-op.
func (m *Manager) MarkCancelled(id string) bool {
	return m.transition(id, model.TaskCancelled, nil, "")
}

func (m *Manager) transition(id string, status model.TaskStatus, result any, errMsg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		slog.Warn("transition on unknown task", "task_id", id, "status", status)
		return false
	}
	if t.Status.Terminal() {
		slog.Warn("ignoring transition on terminal task",
			"task_id", id, "current", t.Status, "requested", status)
		return false
	}

	now := m.now()
	t.Status = status
	t.UpdatedAt = now
	switch {
	case status == model.TaskProcessing:
		if t.StartedAt == nil {
			started := now
			t.StartedAt = &started
		}
	case status.Terminal():
		completed := now
		t.CompletedAt = &completed
		t.Result = result
		t.Error = errMsg
	}
	return true
}

// Cleanup deletes tasks created before maxAge ago, regardless of status, and
// returns how many were removed.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	removed := 0
	for id, t := range m.tasks {
		if t.CreatedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("task cleanup", "removed", removed, "max_age", maxAge)
	}
	return removed
}
