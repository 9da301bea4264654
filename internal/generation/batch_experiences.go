package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"cvadapt-backend/internal/events"
	"cvadapt-backend/internal/llm"
	"cvadapt-backend/internal/resumes"
)

type adaptedExperience struct {
	resumes.Experience
	Modifications []resumes.Modification `json:"modifications"`
}

// runBatchExperiences adapts every kept experience in parallel, one subtask
// per item. The phase only succeeds when every item succeeds.
func (p *pipeline) runBatchExperiences(ctx context.Context, model, cacheA string, experiences []resumes.Experience, targetLanguage string) ([]resumes.Experience, []resumes.Modification, error) {
	if len(experiences) == 0 {
		return nil, nil, nil
	}

	p.publish(ctx, PhaseExperiences, "start", events.StatusRunning, 0, len(experiences), "")

	system := buildCachedSystemPrompt(cacheA, experienceInstructions)
	results := make([]adaptedExperience, len(experiences))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i, exp := range experiences {
		g.Go(func() error {
			payload, err := json.MarshalIndent(exp, "", "  ")
			if err != nil {
				return err
			}
			user := fmt.Sprintf("Langue cible: %s\n\n# EXPERIENCE A ADAPTER\n%s", targetLanguage, payload)

			out, err := p.runSubtask(gctx, PhaseExperiences, i, llm.Request{
				Model:       model,
				System:      system,
				User:        user,
				SchemaName:  "adapted_experience",
				Schema:      adaptedExperienceSchema,
				Temperature: 0.3,
				MaxTokens:   1500,
			})
			if err != nil {
				return fmt.Errorf("experience %d: %w", i, err)
			}

			var adapted adaptedExperience
			if err := json.Unmarshal(out.Content, &adapted); err != nil {
				return fmt.Errorf("experience %d: parse: %w", i, err)
			}
			adapted.Deliverables = keepQuantifiedDeliverables(adapted.Deliverables)
			results[i] = adapted

			p.publish(gctx, PhaseExperiences, "item", events.StatusRunning, int(done.Add(1)), len(experiences), "")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	adapted := make([]resumes.Experience, len(results))
	var mods []resumes.Modification
	for i, res := range results {
		adapted[i] = res.Experience
		mods = append(mods, res.Modifications...)
	}
	p.publish(ctx, PhaseExperiences, "done", events.StatusCompleted, len(experiences), len(experiences), "")
	return adapted, mods, nil
}

// keepQuantifiedDeliverables drops deliverables without a figure. A
// deliverable that cannot name a number is a responsibility in disguise.
func keepQuantifiedDeliverables(items []string) []string {
	var out []string
	for _, item := range items {
		if strings.ContainsAny(item, "0123456789") {
			out = append(out, item)
		}
	}
	return out
}
