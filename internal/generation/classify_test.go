package generation

import (
	"testing"

	"cvadapt-backend/internal/resumes"
)

func TestApplyClassificationFiltersAndConverts(t *testing.T) {
	doc := testDocument()
	classification := Classification{
		Experiences: []Decision{
			{Index: 0, Action: ActionKeep, Reason: "relevant"},
			{Index: 1, Action: ActionMoveToProjects, Reason: "short mission"},
		},
		Projects: []Decision{
			{Index: 0, Action: ActionRemove, Reason: "off topic"},
		},
	}

	experiences, projects, stats := applyClassification(doc, classification)

	if len(experiences) != 1 || experiences[0].Company != "Acme" {
		t.Fatalf("kept experiences = %+v", experiences)
	}
	if len(projects) != 1 {
		t.Fatalf("projects = %+v", projects)
	}
	converted := projects[0]
	if !converted.FromExperience {
		t.Fatalf("converted project must be flagged FromExperience")
	}
	if converted.Name != "Developer" {
		t.Fatalf("converted name = %q, want experience title", converted.Name)
	}
	if converted.OriginalExperience == nil || converted.OriginalExperience.Company != "Beta" {
		t.Fatalf("converted project must keep the original experience")
	}
	if converted.ClassificationReason != "short mission" {
		t.Fatalf("reason = %q", converted.ClassificationReason)
	}

	if stats.KeptExperiences != 1 || stats.MovedExperiences != 1 || stats.RemovedProjects != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestApplyClassificationIgnoresOutOfRangeIndexes(t *testing.T) {
	doc := testDocument()
	classification := Classification{
		Experiences: []Decision{
			{Index: -1, Action: ActionKeep},
			{Index: 99, Action: ActionMoveToProjects},
			{Index: 0, Action: ActionKeep},
		},
		Projects: []Decision{
			{Index: 42, Action: ActionKeep},
		},
	}

	experiences, projects, stats := applyClassification(doc, classification)

	if len(experiences) != 1 {
		t.Fatalf("experiences = %+v, want only the valid index", experiences)
	}
	if len(projects) != 0 {
		t.Fatalf("projects = %+v, want none", projects)
	}
	if stats.MovedExperiences != 0 || stats.KeptProjects != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestConvertExperienceToProjectFallbacks(t *testing.T) {
	exp := resumes.Experience{
		Company:          "Gamma",
		Responsibilities: []string{"Built the pipeline", "Ran the migration"},
		SkillsUsed:       []string{"Go"},
	}
	proj := convertExperienceToProject(exp, "reclassified")

	if proj.Name != "Gamma" {
		t.Fatalf("name = %q, want company fallback", proj.Name)
	}
	if proj.Summary != "Built the pipeline. Ran the migration" {
		t.Fatalf("summary = %q", proj.Summary)
	}
	if len(proj.TechStack) != 1 || proj.TechStack[0] != "Go" {
		t.Fatalf("tech stack = %v", proj.TechStack)
	}

	empty := convertExperienceToProject(resumes.Experience{}, "")
	if empty.Name != "Projet" {
		t.Fatalf("empty name fallback = %q", empty.Name)
	}
}

func TestRunClassificationParsesDecision(t *testing.T) {
	disableBackoff(t)
	client := newScriptedLLM()
	p, repo := newTestPipeline(t, client)

	classification, err := p.runClassification(t.Context(), "gpt-4o-mini", testDocument(), testPosting())
	if err != nil {
		t.Fatalf("runClassification: %v", err)
	}
	if len(classification.Experiences) != 2 || len(classification.Projects) != 1 {
		t.Fatalf("classification = %+v", classification)
	}

	subtasks, err := repo.ListSubtasks(t.Context(), "offer-1")
	if err != nil {
		t.Fatalf("ListSubtasks: %v", err)
	}
	if len(subtasks) != 1 {
		t.Fatalf("subtasks = %d, want 1", len(subtasks))
	}
	st := subtasks[0]
	if st.Phase != PhaseClassification || st.Status != SubtaskCompleted {
		t.Fatalf("subtask = %+v", st)
	}
	if st.PromptTokens != 100 || st.CachedTokens != 40 || st.CompletionTokens != 50 {
		t.Fatalf("usage not recorded: %+v", st)
	}
}
