package events

import "context"

// Progress statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// ProgressEvent is one pipeline progress update pushed to the user's stream.
// CurrentItem/TotalItems are only set for per-item phases.
type ProgressEvent struct {
	TaskID      string `json:"taskId"`
	OfferID     string `json:"offerId,omitempty"`
	OfferIndex  int    `json:"offerIndex"`
	TotalOffers int    `json:"totalOffers"`
	Phase       string `json:"phase"`
	Step        string `json:"step"`
	Status      string `json:"status"`
	CurrentItem int    `json:"currentItem,omitempty"`
	TotalItems  int    `json:"totalItems,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Publisher delivers progress events. Implementations must be fire-and-forget:
// a failing publish never fails the pipeline.
type Publisher interface {
	Publish(ctx context.Context, userID string, event ProgressEvent)
}

// NoopPublisher drops all events.
type NoopPublisher struct{}

// Publish does nothing.
func (NoopPublisher) Publish(ctx context.Context, userID string, event ProgressEvent) {}

var _ Publisher = (*NoopPublisher)(nil)
