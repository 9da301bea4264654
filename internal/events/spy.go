package events

import (
	"context"
	"sync"
)

// SpyPublisher records published events for test assertions.
type SpyPublisher struct {
	mu     sync.Mutex
	events []ProgressEvent
}

// Publish records the event.
func (s *SpyPublisher) Publish(ctx context.Context, userID string, event ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a copy of all recorded events.
func (s *SpyPublisher) Events() []ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProgressEvent, len(s.events))
	copy(out, s.events)
	return out
}

// ByPhase returns recorded events for one phase.
func (s *SpyPublisher) ByPhase(phase string) []ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ProgressEvent
	for _, event := range s.events {
		if event.Phase == phase {
			out = append(out, event)
		}
	}
	return out
}

var _ Publisher = (*SpyPublisher)(nil)
