package slots

import (
	"context"
	"errors"
	"testing"
)

func TestAcquireRejectsSecondTaskForUser(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	_, cancel1 := context.WithCancel(context.Background())
	defer cancel1()
	if err := registry.Acquire("user-1", "task-1", cancel1); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	_, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	if err := registry.Acquire("user-1", "task-2", cancel2); !errors.Is(err, ErrTaskInProgress) {
		t.Fatalf("expected ErrTaskInProgress, got %v", err)
	}

	registry.Release("user-1", "task-1")
	if err := registry.Acquire("user-1", "task-2", cancel2); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestCancelReachesRegisteredContext(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	if err := registry.Acquire("user-1", "task-1", cancel); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if !registry.Cancel("task-1") {
		t.Fatalf("expected Cancel to find the task")
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatalf("expected context to be cancelled")
	}

	if registry.Cancel("task-unknown") {
		t.Fatalf("expected Cancel to miss unknown task")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := registry.Acquire("user-1", "task-1", cancel); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	registry.Release("user-1", "task-1")
	registry.Release("user-1", "task-1")
	if _, ok := registry.Active("user-1"); ok {
		t.Fatalf("expected no active task")
	}
}
