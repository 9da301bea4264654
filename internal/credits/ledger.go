package credits

import (
	"context"
	"errors"
)

// Reason codes recorded against ledger movements.
const (
	ReasonGeneration = "cv_generation"
	ReasonRefund     = "refund"
)

var (
	// ErrInsufficientCredits indicates the user cannot cover the requested
	// amount.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrLedgerUnavailable indicates the ledger backend could not be reached.
	ErrLedgerUnavailable = errors.New("credit ledger unavailable")
)

// Ledger is the credit accounting collaborator. Consume charges a user,
// Grant credits one (used for refunds).
type Ledger interface {
	Consume(ctx context.Context, userID string, amount int, reasonCode string, metadata map[string]any) error
	Grant(ctx context.Context, userID string, amount int, reasonCode string, metadata map[string]any) error
}
