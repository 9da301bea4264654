package generation

import (
	"context"
	"fmt"

	"cvadapt-backend/internal/jobpostings"
	"cvadapt-backend/internal/shared/telemetry"
)

// extractPosting makes sure the offer's posting carries structured content.
// Postings staged from a source already seen arrive extracted and skip the
// phase, fresh ones run an extraction subtask against the classify model.
func (o *Orchestrator) extractPosting(ctx context.Context, p *pipeline, offer Offer) (jobpostings.JobPosting, error) {
	posting, err := o.Postings.GetByID(ctx, offer.JobPostingID)
	if err != nil {
		return jobpostings.JobPosting{}, fmt.Errorf("load posting: %w", err)
	}
	if posting.Title != "" {
		return posting, nil
	}

	rawText, err := o.Postings.ResolveText(ctx, posting)
	if err != nil {
		return jobpostings.JobPosting{}, fmt.Errorf("resolve posting text: %w", err)
	}
	out, err := p.runSubtask(ctx, PhaseExtraction, 0, jobpostings.ExtractionRequest(o.Models.Classify, rawText))
	if err != nil {
		return jobpostings.JobPosting{}, fmt.Errorf("extraction: %w", err)
	}
	content, err := jobpostings.ParseExtraction(out.Content)
	if err != nil {
		return jobpostings.JobPosting{}, Permanentf("parse extraction output: %v", err)
	}
	if err := o.Postings.StoreExtraction(ctx, posting.ID, rawText, content); err != nil {
		return jobpostings.JobPosting{}, fmt.Errorf("store extraction: %w", err)
	}
	posting.Title = content.Title
	posting.RawText = rawText
	posting.Content = content

	if err := o.Repo.SetOfferJobTitle(ctx, offer.ID, content.Title); err != nil {
		telemetry.Warn("generation.offer_title_write_failed", map[string]any{"offer": offer.ID, "error": err.Error()})
	}
	return posting, nil
}
