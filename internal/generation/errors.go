package generation

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is returned when a task id does not exist or belongs
	// to another user.
	ErrTaskNotFound = errors.New("generation task not found")

	// ErrOfferNotFound is returned when an offer id does not exist.
	ErrOfferNotFound = errors.New("generation offer not found")

	// ErrInvalidInput marks request validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// PermanentError wraps a failure caused by the input itself. Retrying the
// same call cannot succeed, so the retry loop stops immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Permanentf formats a non-retryable error.
func Permanentf(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// IsCancellation reports whether err stems from context cancellation or a
// deadline. Cancellation is never retried and never refunded as a provider
// failure would be.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
