package jobpostings

import "errors"

var (
	// ErrNotFound indicates a posting was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates validation or bad input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnreachableSource indicates the posting source could not be fetched.
	ErrUnreachableSource = errors.New("unreachable source")
)
