package generation

import (
	"context"
	"testing"

	"cvadapt-backend/internal/credits"
)

func TestRefundOfferOnce(t *testing.T) {
	repo := NewMemoryRepo()
	task := Task{ID: "task-1", UserID: "user-1", CreditCost: 2, TotalOffers: 1}
	offer := Offer{ID: "offer-1", TaskID: task.ID, Status: OfferFailed}
	if err := repo.CreateTask(context.Background(), task, []Offer{offer}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	ledger := credits.NewMemoryLedger(map[string]int{"user-1": 0})
	refunder := &Refunder{Repo: repo, Ledger: ledger}

	result, err := refunder.RefundOffer(context.Background(), task, offer)
	if err != nil {
		t.Fatalf("RefundOffer: %v", err)
	}
	if result.AlreadyRefunded || result.Amount != 2 {
		t.Fatalf("result = %+v", result)
	}
	if got := ledger.Balance("user-1"); got != 2 {
		t.Fatalf("balance = %d, want 2", got)
	}

	stored, err := repo.GetOffer(context.Background(), "offer-1")
	if err != nil {
		t.Fatalf("GetOffer: %v", err)
	}
	if !stored.CreditsRefunded {
		t.Fatalf("offer flag must be set")
	}
	storedTask, err := repo.GetTask(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if storedTask.CreditsRefunded != 2 {
		t.Fatalf("task refunded total = %d, want 2", storedTask.CreditsRefunded)
	}

	// A redelivered message refunds nothing the second time.
	again, err := refunder.RefundOffer(context.Background(), task, offer)
	if err != nil {
		t.Fatalf("RefundOffer again: %v", err)
	}
	if !again.AlreadyRefunded || again.Amount != 0 {
		t.Fatalf("second result = %+v", again)
	}
	if got := ledger.Balance("user-1"); got != 2 {
		t.Fatalf("balance after second call = %d, want 2", got)
	}
}

func TestRefundOfferSkipsFlaggedOffer(t *testing.T) {
	repo := NewMemoryRepo()
	ledger := credits.NewMemoryLedger(nil)
	refunder := &Refunder{Repo: repo, Ledger: ledger}

	task := Task{ID: "task-1", UserID: "user-1", CreditCost: 1}
	offer := Offer{ID: "offer-1", TaskID: task.ID, CreditsRefunded: true}

	result, err := refunder.RefundOffer(context.Background(), task, offer)
	if err != nil {
		t.Fatalf("RefundOffer: %v", err)
	}
	if !result.AlreadyRefunded {
		t.Fatalf("result = %+v", result)
	}
	if got := len(ledger.Movements()); got != 0 {
		t.Fatalf("movements = %d, want none", got)
	}
}
