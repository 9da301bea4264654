package object

import (
	"context"
	"io"
)

// Store defines the contract for saving and retrieving objects at
// caller-chosen keys. Keys are slash-separated relative paths.
type Store interface {
	Put(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}
