package generation

import (
	"context"
	"encoding/json"
	"fmt"

	"cvadapt-backend/internal/events"
	"cvadapt-backend/internal/llm"
	"cvadapt-backend/internal/resumes"
)

type adaptedExtras struct {
	Extras        []resumes.Extra        `json:"extras"`
	Modifications []resumes.Modification `json:"modifications"`
}

// runBatchExtras reviews the extras section in one call. A CV without
// extras needs no call at all.
func (p *pipeline) runBatchExtras(ctx context.Context, model, cacheA string, extras []resumes.Extra, targetLanguage string) ([]resumes.Extra, []resumes.Modification, error) {
	if len(extras) == 0 {
		return nil, nil, nil
	}

	p.publish(ctx, PhaseExtras, "start", events.StatusRunning, 0, 1, "")

	payload, err := json.MarshalIndent(extras, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	user := fmt.Sprintf("Langue cible: %s\n\n# EXTRAS A REVOIR\n%s", targetLanguage, payload)

	out, err := p.runSubtask(ctx, PhaseExtras, 0, llm.Request{
		Model:       model,
		System:      buildCachedSystemPrompt(cacheA, extrasInstructions),
		User:        user,
		SchemaName:  "adapted_extras",
		Schema:      adaptedExtrasSchema,
		Temperature: 0.2,
		MaxTokens:   800,
	})
	if err != nil {
		return nil, nil, err
	}

	var adapted adaptedExtras
	if err := json.Unmarshal(out.Content, &adapted); err != nil {
		return nil, nil, fmt.Errorf("parse extras output: %w", err)
	}

	p.publish(ctx, PhaseExtras, "done", events.StatusCompleted, 1, 1, "")
	return adapted.Extras, adapted.Modifications, nil
}
