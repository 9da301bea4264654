package generation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cvadapt-backend/internal/events"
	"cvadapt-backend/internal/llm"
	"cvadapt-backend/internal/shared/metrics"
	"cvadapt-backend/internal/shared/telemetry"
)

// pipeline carries the per-offer state shared by all phase functions.
type pipeline struct {
	repo       Repo
	llm        llm.Client
	events     events.Publisher
	transcript *Recorder
	task       Task
	offer      Offer
}

// publish emits a progress event for the offer. Delivery is best effort.
func (p *pipeline) publish(ctx context.Context, phase, step, status string, current, total int, errMsg string) {
	if p.events == nil {
		return
	}
	p.events.Publish(ctx, p.task.UserID, events.ProgressEvent{
		TaskID:      p.task.ID,
		OfferID:     p.offer.ID,
		OfferIndex:  p.offer.OfferIndex,
		TotalOffers: p.task.TotalOffers,
		Phase:       phase,
		Step:        step,
		Status:      status,
		CurrentItem: current,
		TotalItems:  total,
		Error:       errMsg,
	})
}

// runSubtask tracks one LLM call as a subtask row: create it running, retry
// the call with backoff, persist output, usage and timing. Retries bump the
// stored retry counter before each backoff so progress readers see them.
func (p *pipeline) runSubtask(ctx context.Context, phase string, itemIndex int, req llm.Request) (*llm.Completion, error) {
	subtask := Subtask{
		ID:        uuid.NewString(),
		OfferID:   p.offer.ID,
		Phase:     phase,
		ItemIndex: itemIndex,
		Status:    SubtaskRunning,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.repo.CreateSubtask(ctx, subtask); err != nil {
		return nil, err
	}

	start := time.Now()
	out, callErr := withRetry(ctx, phase, func(ctx context.Context) (*llm.Completion, error) {
		return p.llm.Complete(ctx, req)
	}, func(int) {
		subtask.RetryCount++
		if err := p.repo.IncrementSubtaskRetry(ctx, subtask.ID); err != nil {
			telemetry.Warn("generation.subtask_retry_update_failed", map[string]any{"subtask": subtask.ID, "error": err.Error()})
		}
	})
	subtask.DurationMs = time.Since(start).Milliseconds()

	if callErr != nil {
		subtask.Status = SubtaskFailed
		subtask.Error = callErr.Error()
		if err := p.repo.UpdateSubtask(ctx, subtask); err != nil {
			telemetry.Warn("generation.subtask_update_failed", map[string]any{"subtask": subtask.ID, "error": err.Error()})
		}
		p.transcript.Record(ctx, p.task.ID, p.offer.ID, phase, itemIndex, req, nil, callErr)
		return nil, callErr
	}

	subtask.Status = SubtaskCompleted
	subtask.Output = out.Content
	subtask.ModelUsed = out.Model
	subtask.PromptTokens = out.Usage.PromptTokens
	subtask.CachedTokens = out.Usage.CachedTokens
	subtask.CompletionTokens = out.Usage.CompletionTokens
	subtask.EstimatedCost = estimateCost(out.Model, out.Usage.PromptTokens, out.Usage.CachedTokens, out.Usage.CompletionTokens)
	if err := p.repo.UpdateSubtask(ctx, subtask); err != nil {
		telemetry.Warn("generation.subtask_update_failed", map[string]any{"subtask": subtask.ID, "error": err.Error()})
	}
	metrics.ObservePhaseDurationMs(float64(subtask.DurationMs))
	p.transcript.Record(ctx, p.task.ID, p.offer.ID, phase, itemIndex, req, out.Content, nil)
	return out, nil
}
