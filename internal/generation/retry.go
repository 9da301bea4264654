package generation

import (
	"context"
	"time"

	"cvadapt-backend/internal/shared/metrics"
	"cvadapt-backend/internal/shared/telemetry"
)

const (
	maxRetries    = 3
	backoffBaseMs = 1000
)

// sleep is swapped out in tests to avoid real backoff delays.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDelay returns the exponential delay before retry number attempt+1.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(backoffBaseMs*(1<<attempt)) * time.Millisecond
}

// withRetry runs fn up to maxRetries+1 times with exponential backoff.
// onRetry, if set, runs before each backoff sleep and receives the number of
// the upcoming attempt (1-based). Permanent errors and cancellation stop the
// loop immediately.
func withRetry[T any](ctx context.Context, label string, fn func(ctx context.Context) (T, error), onRetry func(nextAttempt int)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if IsCancellation(err) || IsPermanent(err) {
			return zero, err
		}
		if attempt == maxRetries {
			break
		}
		metrics.IncPhaseRetry()
		telemetry.Warn("generation.retry", map[string]any{"step": label, "attempt": attempt + 1, "error": err.Error()})
		if onRetry != nil {
			onRetry(attempt + 1)
		}
		if err := sleep(ctx, backoffDelay(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}
