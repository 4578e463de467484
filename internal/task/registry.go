package task

import (
	"sync"
	"time"

	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/logutils"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/utils"
)

const maxRunningProgress = 99

// Registry is the process-wide store of tasks. It owns all synchronization:
// workers and request handlers only ever touch tasks through its methods,
// and Get returns value snapshots, never pointers into the map.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	now   func() time.Time
}

func NewRegistry() *Registry {
	return NewRegistryWithClock(time.Now)
}

// NewRegistryWithClock allows tests to control time for TTL sweeps.
func NewRegistryWithClock(now func() time.Time) *Registry {
	return &Registry{
		tasks: make(map[string]*Task),
		now:   now,
	}
}

// Create inserts a new pending task. The id generation policy makes
// collisions practically impossible, but the invariant is still checked.
func (r *Registry) Create(id, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[id]; exists {
		return utils.WrapError(utils.ErrDuplicateTask, "task already registered", map[string]any{
			"task_id": id,
		})
	}

	now := r.now()
	r.tasks[id] = &Task{
		ID:        id,
		URL:       url,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

// SetRunning marks the task as running. A no-op for missing or terminal tasks.
func (r *Registry) SetRunning(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status.IsTerminal() {
		return
	}
	t.Status = StatusRunning
	t.UpdatedAt = r.now()
}

// SetTitle records the resolved media title. A no-op for missing tasks.
func (r *Registry) SetTitle(id, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tasks[id]; ok {
		t.Title = title
		t.UpdatedAt = r.now()
	}
}

// UpdateProgress records a progress report from a worker. The percent is
// clamped to [0, 99] so a running task can never claim completion, and
// regressions are ignored so pollers observe monotonic values. A worker
// reporting for a missing or already-terminal task must not fail, so those
// cases are tolerated silently.
func (r *Registry) UpdateProgress(id string, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > maxRunningProgress {
		percent = maxRunningProgress
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		logutils.Log.WithField("task_id", id).Debug("Progress report for unknown task ignored")
		return
	}
	if t.Status.IsTerminal() || percent <= t.Progress {
		return
	}
	t.Progress = percent
	t.UpdatedAt = r.now()
}

// Complete marks the task as finished and records the result path.
// Idempotent: a second terminal transition is a no-op.
func (r *Registry) Complete(id, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status.IsTerminal() {
		return
	}
	t.Status = StatusCompleted
	t.Progress = 100
	t.ResultPath = path
	t.UpdatedAt = r.now()
}

// Fail marks the task as failed, keeping the last reported progress so the
// user can see where the download stopped. Idempotent like Complete.
func (r *Registry) Fail(id, cause string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status.IsTerminal() {
		return
	}
	t.Status = StatusFailed
	t.Err = cause
	t.UpdatedAt = r.now()
}

// Get returns a snapshot of the task.
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// SweepExpired removes terminal tasks whose last update is older than ttl
// and returns their snapshots so the caller can clean up result files.
func (r *Registry) SweepExpired(ttl time.Duration) []Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-ttl)
	var removed []Task
	for id, t := range r.tasks {
		if t.Status.IsTerminal() && t.UpdatedAt.Before(cutoff) {
			removed = append(removed, *t)
			delete(r.tasks, id)
		}
	}
	return removed
}
