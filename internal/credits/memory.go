package credits

import (
	"context"
	"sync"
)

// Movement is one recorded ledger operation, kept for test assertions.
type Movement struct {
	UserID     string
	Amount     int
	ReasonCode string
	Metadata   map[string]any
}

// MemoryLedger is an in-process Ledger used in tests and local runs.
type MemoryLedger struct {
	mu        sync.Mutex
	balances  map[string]int
	movements []Movement
}

// NewMemoryLedger constructs a MemoryLedger with the given starting balances.
func NewMemoryLedger(balances map[string]int) *MemoryLedger {
	ledger := &MemoryLedger{balances: make(map[string]int)}
	for userID, balance := range balances {
		ledger.balances[userID] = balance
	}
	return ledger
}

// Consume charges the user, failing with ErrInsufficientCredits when the
// balance cannot cover the amount.
func (l *MemoryLedger) Consume(ctx context.Context, userID string, amount int, reasonCode string, metadata map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[userID] < amount {
		return ErrInsufficientCredits
	}
	l.balances[userID] -= amount
	l.movements = append(l.movements, Movement{UserID: userID, Amount: -amount, ReasonCode: reasonCode, Metadata: metadata})
	return nil
}

// Grant credits the user.
func (l *MemoryLedger) Grant(ctx context.Context, userID string, amount int, reasonCode string, metadata map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] += amount
	l.movements = append(l.movements, Movement{UserID: userID, Amount: amount, ReasonCode: reasonCode, Metadata: metadata})
	return nil
}

// Balance returns the current balance for a user.
func (l *MemoryLedger) Balance(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID]
}

// Movements returns a copy of all recorded movements.
func (l *MemoryLedger) Movements() []Movement {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Movement, len(l.movements))
	copy(out, l.movements)
	return out
}

var _ Ledger = (*MemoryLedger)(nil)
