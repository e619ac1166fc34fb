package task

import (
	"sync"
	"testing"
	"time"

	"github.com/gradeflow/gradeflow/internal/model"
)

func TestCreateAndGet(t *testing.T) {
	m := NewManager()
	id := m.Create("evaluation", map[string]string{"evaluation_id": "eval-1"})

	got := m.Get(id)
	if got == nil {
		t.Fatal("Get returned nil for a fresh task")
	}
	if got.Status != model.TaskPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
	if got.Metadata["evaluation_id"] != "eval-1" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if got.StartedAt != nil || got.CompletedAt != nil {
		t.Error("fresh task must not carry started_at or completed_at")
	}

	if m.Get("no-such-task") != nil {
		t.Error("Get for unknown id must return nil")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	m := NewManager()
	id := m.Create("evaluation", map[string]string{"evaluation_id": "eval-1"})

	got := m.Get(id)
	got.Status = model.TaskFailed
	got.Metadata["evaluation_id"] = "tampered"

	stored := m.Get(id)
	if stored.Status != model.TaskPending {
		t.Error("mutating a Get result must not change the stored task")
	}
	if stored.Metadata["evaluation_id"] != "eval-1" {
		t.Error("mutating a Get result's metadata must not change the stored task")
	}
}

func TestTransitionsReportTheWinner(t *testing.T) {
	m := NewManager()
	id := m.Create("evaluation", nil)

	if !m.MarkProcessing(id) {
		t.Fatal("MarkProcessing on a pending task must win")
	}
	if !m.MarkCancelled(id) {
		t.Fatal("MarkCancelled on a processing task must win")
	}
	if m.MarkCompleted(id, "late result") {
		t.Error("MarkCompleted must lose against an earlier cancellation")
	}
	if got := m.Get(id); got.Result != nil {
		t.Errorf("losing MarkCompleted must not record a result, got %v", got.Result)
	}
	if m.MarkCompleted("no-such-task", nil) {
		t.Error("transition on an unknown task must report a loss")
	}
}

func TestLifecycle(t *testing.T) {
	m := NewManager()
	id := m.Create("evaluation", nil)

	m.MarkProcessing(id)
	got := m.Get(id)
	if got.Status != model.TaskProcessing {
		t.Fatalf("status = %q, want processing", got.Status)
	}
	if got.StartedAt == nil {
		t.Fatal("processing task must carry started_at")
	}
	started := *got.StartedAt

	// A second MarkProcessing keeps the original start time.
	m.MarkProcessing(id)
	if !m.Get(id).StartedAt.Equal(started) {
		t.Error("started_at must be set only once")
	}

	m.MarkCompleted(id, "done")
	got = m.Get(id)
	if got.Status != model.TaskCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.Result != "done" {
		t.Errorf("result = %v, want done", got.Result)
	}
	if got.CompletedAt == nil {
		t.Error("terminal task must carry completed_at")
	}
}

func TestTerminalStatesAreSticky(t *testing.T) {
	tests := []struct {
		name     string
		finish   func(m *Manager, id string)
		terminal model.TaskStatus
	}{
		{"completed", func(m *Manager, id string) { m.MarkCompleted(id, nil) }, model.TaskCompleted},
		{"failed", func(m *Manager, id string) { m.MarkFailed(id, "boom") }, model.TaskFailed},
		{"cancelled", func(m *Manager, id string) { m.MarkCancelled(id) }, model.TaskCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			id := m.Create("evaluation", nil)
			m.MarkProcessing(id)
			tt.finish(m, id)

			m.MarkProcessing(id)
			m.MarkCompleted(id, "late")
			m.MarkFailed(id, "late")
			m.MarkCancelled(id)

			if got := m.Get(id).Status; got != tt.terminal {
				t.Errorf("status = %q, want sticky %q", got, tt.terminal)
			}
		})
	}
}

func TestCancellationBeatsWorkerCompletion(t *testing.T) {
	m := NewManager()
	id := m.Create("evaluation", nil)

	m.MarkProcessing(id)
	m.MarkCancelled(id)
	m.MarkCompleted(id, "discarded result")

	got := m.Get(id)
	if got.Status != model.TaskCancelled {
		t.Fatalf("status = %q, want cancelled", got.Status)
	}
	if got.Result != nil {
		t.Errorf("result = %v, want discarded", got.Result)
	}
}

func TestCleanup(t *testing.T) {
	m := NewManager()
	old := m.Create("evaluation", nil)
	m.MarkCompleted(old, nil)
	fresh := m.Create("evaluation", nil)

	// Age the first task past the threshold.
	m.mu.Lock()
	m.tasks[old].CreatedAt = time.Now().Add(-48 * time.Hour)
	m.mu.Unlock()

	if removed := m.Cleanup(24 * time.Hour); removed != 1 {
		t.Fatalf("removed %d tasks, want 1", removed)
	}
	if m.Get(old) != nil {
		t.Error("aged task must be deleted")
	}
	if m.Get(fresh) == nil {
		t.Error("fresh task must survive cleanup")
	}
}

func TestConcurrentTransitions(t *testing.T) {
	m := NewManager()
	id := m.Create("evaluation", nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.MarkProcessing(id)
		}()
		go func() {
			defer wg.Done()
			m.Get(id)
		}()
	}
	wg.Wait()

	m.MarkCompleted(id, nil)
	if got := m.Get(id).Status; got != model.TaskCompleted {
		t.Errorf("status = %q, want completed", got)
	}
}
