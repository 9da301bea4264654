package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Client abstracts LLM providers for structured CV generation calls.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Request captures a single structured completion call. System carries the
// cacheable prefix and must stay byte-stable across calls that share it.
type Request struct {
	Model       string
	System      string
	User        string
	SchemaName  string
	Schema      json.RawMessage
	Temperature float32
	MaxTokens   int
}

// Completion is the parsed result of a completion call.
type Completion struct {
	Content json.RawMessage
	Model   string
	Usage   Usage
}

// Usage reports token accounting for one call. CachedTokens counts the part
// of the prompt served from the provider's prompt cache.
type Usage struct {
	PromptTokens     int
	CachedTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// Complete returns ErrNotImplemented.
func (PlaceholderClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	_ = ctx
	_ = req
	return nil, ErrNotImplemented
}

var _ Client = (*PlaceholderClient)(nil)
