package generation

import (
	"context"
	"fmt"

	"cvadapt-backend/internal/credits"
	"cvadapt-backend/internal/shared/metrics"
	"cvadapt-backend/internal/shared/telemetry"
)

// RefundResult reports what a refund attempt actually did.
type RefundResult struct {
	AlreadyRefunded bool `json:"alreadyRefunded"`
	Amount          int  `json:"amount"`
}

// Refunder returns credits for offers that failed or were cancelled. The
// per-offer flag makes the operation idempotent: a redelivered message or a
// double sweep refunds nothing the second time.
type Refunder struct {
	Repo   Repo
	Ledger credits.Ledger
}

// RefundOffer refunds the per-offer credit cost once. Task.CreditCost is
// the cost of one offer, not of the whole task.
func (r *Refunder) RefundOffer(ctx context.Context, task Task, offer Offer) (RefundResult, error) {
	if offer.CreditsRefunded {
		return RefundResult{AlreadyRefunded: true}, nil
	}

	current, err := r.Repo.GetOffer(ctx, offer.ID)
	if err != nil {
		return RefundResult{}, err
	}
	if current.CreditsRefunded {
		return RefundResult{AlreadyRefunded: true}, nil
	}

	metadata := map[string]any{
		"taskId":     task.ID,
		"offerId":    offer.ID,
		"offerIndex": offer.OfferIndex,
	}
	if err := r.Ledger.Grant(ctx, task.UserID, task.CreditCost, credits.ReasonRefund, metadata); err != nil {
		return RefundResult{}, fmt.Errorf("grant refund: %w", err)
	}

	marked, err := r.Repo.MarkOfferRefunded(ctx, offer.ID, task.ID, task.CreditCost)
	if err != nil {
		return RefundResult{}, err
	}
	if !marked {
		// Lost the race against a concurrent refund. Credits were granted
		// twice, flag it loudly for reconciliation.
		telemetry.Error("generation.refund_double_grant", map[string]any{"task": task.ID, "offer": offer.ID})
		return RefundResult{AlreadyRefunded: true}, nil
	}

	metrics.IncCreditRefund()
	telemetry.Info("generation.offer_refunded", map[string]any{"task": task.ID, "offer": offer.ID, "amount": task.CreditCost})
	return RefundResult{Amount: task.CreditCost}, nil
}
