package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"cvadapt-backend/internal/events"
	"cvadapt-backend/internal/llm"
	"cvadapt-backend/internal/resumes"
)

type adaptedProject struct {
	Name          string                 `json:"name"`
	Role          string                 `json:"role"`
	StartDate     string                 `json:"start_date"`
	EndDate       string                 `json:"end_date"`
	Summary       string                 `json:"summary"`
	TechStack     []string               `json:"tech_stack"`
	URL           *string                `json:"url"`
	Modifications []resumes.Modification `json:"modifications"`
}

// runBatchProjects adapts every kept project in parallel, one subtask per
// item. Projects converted from experiences get their conversion context in
// the prompt so the model can write a real name and role.
func (p *pipeline) runBatchProjects(ctx context.Context, model, cacheA string, projects []resumes.Project, targetLanguage string) ([]resumes.Project, []resumes.Modification, error) {
	if len(projects) == 0 {
		return nil, nil, nil
	}

	p.publish(ctx, PhaseProjects, "start", events.StatusRunning, 0, len(projects), "")

	system := buildCachedSystemPrompt(cacheA, projectInstructions)
	results := make([]adaptedProject, len(projects))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i, proj := range projects {
		g.Go(func() error {
			payload, err := json.MarshalIndent(proj, "", "  ")
			if err != nil {
				return err
			}
			user := fmt.Sprintf("Langue cible: %s\n\n# PROJET A ADAPTER\n%s", targetLanguage, payload)
			if proj.FromExperience {
				user += "\n\nCe projet provient d'une experience reclassee. Redige un nom et un role de projet a partir des informations d'origine."
			}

			out, err := p.runSubtask(gctx, PhaseProjects, i, llm.Request{
				Model:       model,
				System:      system,
				User:        user,
				SchemaName:  "adapted_project",
				Schema:      adaptedProjectSchema,
				Temperature: 0.3,
				MaxTokens:   1000,
			})
			if err != nil {
				return fmt.Errorf("project %d: %w", i, err)
			}

			var adapted adaptedProject
			if err := json.Unmarshal(out.Content, &adapted); err != nil {
				return fmt.Errorf("project %d: parse: %w", i, err)
			}
			results[i] = adapted

			p.publish(gctx, PhaseProjects, "item", events.StatusRunning, int(done.Add(1)), len(projects), "")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	adapted := make([]resumes.Project, len(results))
	var mods []resumes.Modification
	for i, res := range results {
		url := ""
		if res.URL != nil {
			url = *res.URL
		}
		adapted[i] = resumes.Project{
			Name:           res.Name,
			Role:           res.Role,
			StartDate:      res.StartDate,
			EndDate:        res.EndDate,
			Summary:        res.Summary,
			TechStack:      res.TechStack,
			URL:            url,
			FromExperience: projects[i].FromExperience,
		}
		mods = append(mods, res.Modifications...)
	}
	p.publish(ctx, PhaseProjects, "done", events.StatusCompleted, len(projects), len(projects), "")
	return adapted, mods, nil
}
