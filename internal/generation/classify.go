package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cvadapt-backend/internal/jobpostings"
	"cvadapt-backend/internal/llm"
	"cvadapt-backend/internal/resumes"
)

// Classification actions.
const (
	ActionKeep           = "KEEP"
	ActionRemove         = "REMOVE"
	ActionMoveToProjects = "MOVE_TO_PROJECTS"
)

// Decision is one per-item verdict from the classification phase.
type Decision struct {
	Index  int    `json:"index"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Classification is the full phase output.
type Classification struct {
	Experiences []Decision `json:"experiences"`
	Projects    []Decision `json:"projects"`
}

// ClassificationStats summarizes what the classification kept, removed and
// moved. Stored in the offer batch results for debugging.
type ClassificationStats struct {
	OriginalExperiences int `json:"originalExperiences"`
	KeptExperiences     int `json:"keptExperiences"`
	RemovedExperiences  int `json:"removedExperiences"`
	MovedExperiences    int `json:"movedExperiences"`
	OriginalProjects    int `json:"originalProjects"`
	KeptProjects        int `json:"keptProjects"`
	RemovedProjects     int `json:"removedProjects"`
}

// runClassification asks the model to triage every experience and project
// against the posting.
func (p *pipeline) runClassification(ctx context.Context, model string, doc resumes.Document, posting jobpostings.JobPosting) (Classification, error) {
	experiencesJSON, err := json.MarshalIndent(doc.Experiences, "", "  ")
	if err != nil {
		return Classification{}, err
	}
	projectsJSON, err := json.MarshalIndent(doc.Projects, "", "  ")
	if err != nil {
		return Classification{}, err
	}
	postingJSON, err := json.MarshalIndent(posting.Content, "", "  ")
	if err != nil {
		return Classification{}, err
	}

	var user strings.Builder
	fmt.Fprintf(&user, "# OFFRE D'EMPLOI\n%s\n\n", postingJSON)
	fmt.Fprintf(&user, "# EXPERIENCES (index dans l'ordre)\n%s\n\n", experiencesJSON)
	fmt.Fprintf(&user, "# PROJETS (index dans l'ordre)\n%s\n", projectsJSON)

	out, err := p.runSubtask(ctx, PhaseClassification, 0, llm.Request{
		Model:       model,
		System:      classificationInstructions,
		User:        user.String(),
		SchemaName:  "cv_classification",
		Schema:      classificationSchema,
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		return Classification{}, err
	}

	var classification Classification
	if err := json.Unmarshal(out.Content, &classification); err != nil {
		return Classification{}, fmt.Errorf("parse classification: %w", err)
	}
	return classification, nil
}

// applyClassification filters the document sections according to the
// verdicts. Decisions pointing at indexes outside the source slices are
// dropped, the model sometimes hallucinates items.
func applyClassification(doc resumes.Document, classification Classification) ([]resumes.Experience, []resumes.Project, ClassificationStats) {
	stats := ClassificationStats{
		OriginalExperiences: len(doc.Experiences),
		OriginalProjects:    len(doc.Projects),
	}

	var kept []resumes.Experience
	var moved []resumes.Project
	for _, d := range classification.Experiences {
		if d.Index < 0 || d.Index >= len(doc.Experiences) {
			continue
		}
		exp := doc.Experiences[d.Index]
		switch d.Action {
		case ActionKeep:
			kept = append(kept, exp)
		case ActionRemove:
			stats.RemovedExperiences++
		case ActionMoveToProjects:
			moved = append(moved, convertExperienceToProject(exp, d.Reason))
		}
	}
	stats.KeptExperiences = len(kept)
	stats.MovedExperiences = len(moved)

	var projects []resumes.Project
	for _, d := range classification.Projects {
		if d.Index < 0 || d.Index >= len(doc.Projects) {
			continue
		}
		switch d.Action {
		case ActionKeep:
			proj := doc.Projects[d.Index]
			proj.ClassificationReason = d.Reason
			projects = append(projects, proj)
			stats.KeptProjects++
		case ActionRemove:
			stats.RemovedProjects++
		}
	}
	projects = append(projects, moved...)

	return kept, projects, stats
}

// convertExperienceToProject reshapes a short mission into a portfolio
// entry. The original experience rides along so the adaptation prompt can
// write a proper project name and role.
func convertExperienceToProject(exp resumes.Experience, reason string) resumes.Project {
	name := exp.Title
	if name == "" {
		name = exp.Company
	}
	if name == "" {
		name = "Projet"
	}
	summary := exp.Description
	if summary == "" {
		summary = strings.Join(exp.Responsibilities, ". ")
	}
	original := exp
	return resumes.Project{
		Name:                 name,
		Role:                 "",
		StartDate:            exp.StartDate,
		EndDate:              exp.EndDate,
		Summary:              summary,
		TechStack:            exp.SkillsUsed,
		URL:                  "",
		FromExperience:       true,
		ClassificationReason: reason,
		OriginalExperience:   &original,
	}
}
