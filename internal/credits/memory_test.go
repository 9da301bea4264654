package credits

import (
	"context"
	"errors"
	"testing"
)

func TestConsumeAndGrantAdjustBalance(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger(map[string]int{"user-1": 3})

	if err := ledger.Consume(context.Background(), "user-1", 2, ReasonGeneration, nil); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if got := ledger.Balance("user-1"); got != 1 {
		t.Fatalf("expected balance 1, got %d", got)
	}

	if err := ledger.Grant(context.Background(), "user-1", 1, ReasonRefund, map[string]any{"taskId": "t1"}); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if got := ledger.Balance("user-1"); got != 2 {
		t.Fatalf("expected balance 2, got %d", got)
	}

	movements := ledger.Movements()
	if len(movements) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(movements))
	}
	if movements[1].ReasonCode != ReasonRefund {
		t.Fatalf("expected refund reason, got %q", movements[1].ReasonCode)
	}
}

func TestConsumeRejectsInsufficientBalance(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger(map[string]int{"user-1": 1})
	err := ledger.Consume(context.Background(), "user-1", 2, ReasonGeneration, nil)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if got := ledger.Balance("user-1"); got != 1 {
		t.Fatalf("balance changed on failed consume: %d", got)
	}
}
