package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cvadapt-backend/internal/llm"
	"cvadapt-backend/internal/shared/storage/object"
	"cvadapt-backend/internal/shared/telemetry"
)

// Recorder writes per-call prompt and response transcripts to object
// storage. Transcripts are a debugging aid. Failures are logged and
// swallowed so they never break a running pipeline. A nil Recorder records
// nothing.
type Recorder struct {
	Store object.Store
}

type transcript struct {
	RecordedAt time.Time       `json:"recordedAt"`
	Phase      string          `json:"phase"`
	ItemIndex  int             `json:"itemIndex"`
	Model      string          `json:"model"`
	System     string          `json:"system"`
	User       string          `json:"user"`
	Response   json.RawMessage `json:"response,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Record stores one LLM exchange under a key derived from the task, offer
// and phase.
func (r *Recorder) Record(ctx context.Context, taskID, offerID, phase string, itemIndex int, req llm.Request, resp json.RawMessage, callErr error) {
	if r == nil || r.Store == nil {
		return
	}
	entry := transcript{
		RecordedAt: time.Now().UTC(),
		Phase:      phase,
		ItemIndex:  itemIndex,
		Model:      req.Model,
		System:     req.System,
		User:       req.User,
		Response:   resp,
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	payload, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		telemetry.Warn("generation.transcript_marshal_failed", map[string]any{"phase": phase, "error": err.Error()})
		return
	}
	key := fmt.Sprintf("generation/%s/%s/%s-%d-%d.json", taskID, offerID, phase, itemIndex, entry.RecordedAt.UnixMilli())
	if _, err := r.Store.Put(ctx, key, "application/json", bytes.NewReader(payload)); err != nil {
		telemetry.Warn("generation.transcript_write_failed", map[string]any{"key": key, "error": err.Error()})
	}
}
