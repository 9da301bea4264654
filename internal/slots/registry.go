package slots

import (
	"context"
	"errors"
	"sync"
)

// ErrTaskInProgress indicates the user already has a running generation.
var ErrTaskInProgress = errors.New("task already in progress")

// Registry tracks running generation tasks and their cancel functions. One
// generation per user runs at a time; cancellation reaches the runner through
// the registered context cancel, not through shared flags.
type Registry struct {
	mu           sync.Mutex
	cancelByTask map[string]context.CancelFunc
	activeByUser map[string]string
}

// NewRegistry constructs a Registry.
func NewRegistry() *Registry {
	return &Registry{
		cancelByTask: make(map[string]context.CancelFunc),
		activeByUser: make(map[string]string),
	}
}

// Acquire reserves the user's generation slot for a task and registers its
// cancel function. It fails with ErrTaskInProgress when another task holds
// the slot.
func (r *Registry) Acquire(userID, taskID string, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if running, ok := r.activeByUser[userID]; ok && running != taskID {
		return ErrTaskInProgress
	}
	r.activeByUser[userID] = taskID
	r.cancelByTask[taskID] = cancel
	return nil
}

// Cancel cancels a running task. It reports whether the task was registered.
func (r *Registry) Cancel(taskID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancelByTask[taskID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Release frees the user's slot after the task finished. Safe to call twice.
func (r *Registry) Release(userID, taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeByUser[userID] == taskID {
		delete(r.activeByUser, userID)
	}
	delete(r.cancelByTask, taskID)
}

// Active returns the user's running task ID, if any.
func (r *Registry) Active(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	taskID, ok := r.activeByUser[userID]
	return taskID, ok
}
