package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cvadapt-backend/internal/events"
	"cvadapt-backend/internal/llm"
	"cvadapt-backend/internal/resumes"
	"cvadapt-backend/internal/shared/telemetry"
)

// Skill review actions.
const (
	SkillKept    = "kept"
	SkillRenamed = "renamed"
	SkillDeleted = "deleted"
)

// SkillDecision is one per-skill verdict from the skills phase.
type SkillDecision struct {
	OriginalValue string `json:"original_value"`
	SkillFinal    string `json:"skill_final"`
	Action        string `json:"action"`
	Reason        string `json:"reason"`
}

type skillsReview struct {
	HardSkills    []SkillDecision        `json:"hard_skills"`
	SoftSkills    []SkillDecision        `json:"soft_skills"`
	Tools         []SkillDecision        `json:"tools"`
	Methodologies []SkillDecision        `json:"methodologies"`
	Modifications []resumes.Modification `json:"modifications"`
}

// runBatchSkills reviews the four skill categories in one call against the
// posting and the already adapted sections (Cache B). The model can keep,
// rename or delete skills but never add one, invented entries are filtered
// out after the call.
func (p *pipeline) runBatchSkills(ctx context.Context, model, cacheB string, skills resumes.Skills, targetLanguage string) (resumes.Skills, []resumes.Modification, error) {
	payload, err := json.MarshalIndent(skills, "", "  ")
	if err != nil {
		return resumes.Skills{}, nil, err
	}
	user := fmt.Sprintf("Langue cible: %s\n\n# COMPETENCES SOURCE\n%s", targetLanguage, payload)

	p.publish(ctx, PhaseSkills, "start", events.StatusRunning, 0, 1, "")

	out, err := p.runSubtask(ctx, PhaseSkills, 0, llm.Request{
		Model:       model,
		System:      buildCachedSystemPrompt(cacheB, skillsInstructions),
		User:        user,
		SchemaName:  "skills_review",
		Schema:      skillsReviewSchema,
		Temperature: 0.2,
		MaxTokens:   1500,
	})
	if err != nil {
		return resumes.Skills{}, nil, err
	}

	var review skillsReview
	if err := json.Unmarshal(out.Content, &review); err != nil {
		return resumes.Skills{}, nil, fmt.Errorf("parse skills review: %w", err)
	}

	source := collectSourceSkills(skills)
	reviewed := resumes.Skills{
		HardSkills:    applySkillDecisions(p, "hard_skills", review.HardSkills, source["hard_skills"]),
		SoftSkills:    skillNames(applySkillDecisions(p, "soft_skills", review.SoftSkills, source["soft_skills"])),
		Tools:         applySkillDecisions(p, "tools", review.Tools, source["tools"]),
		Methodologies: skillNames(applySkillDecisions(p, "methodologies", review.Methodologies, source["methodologies"])),
	}

	p.publish(ctx, PhaseSkills, "done", events.StatusCompleted, 1, 1, "")
	return reviewed, review.Modifications, nil
}

// collectSourceSkills indexes every source skill by normalized name per
// category, keeping the proficiency for lookup after a rename.
func collectSourceSkills(skills resumes.Skills) map[string]map[string]resumes.Skill {
	out := map[string]map[string]resumes.Skill{
		"hard_skills":   {},
		"soft_skills":   {},
		"tools":         {},
		"methodologies": {},
	}
	for _, s := range skills.HardSkills {
		out["hard_skills"][normalizeSkill(s.Name)] = s
	}
	for _, name := range skills.SoftSkills {
		out["soft_skills"][normalizeSkill(name)] = resumes.Skill{Name: name}
	}
	for _, s := range skills.Tools {
		out["tools"][normalizeSkill(s.Name)] = s
	}
	for _, name := range skills.Methodologies {
		out["methodologies"][normalizeSkill(name)] = resumes.Skill{Name: name}
	}
	return out
}

// applySkillDecisions turns verdicts back into skills. A decision whose
// original_value does not match any source skill is an invention and gets
// dropped with a warning.
func applySkillDecisions(p *pipeline, category string, decisions []SkillDecision, source map[string]resumes.Skill) []resumes.Skill {
	var out []resumes.Skill
	for _, d := range decisions {
		src, ok := source[normalizeSkill(d.OriginalValue)]
		if !ok {
			telemetry.Warn("generation.skill_invented", map[string]any{
				"offer":    p.offer.ID,
				"category": category,
				"value":    d.OriginalValue,
			})
			continue
		}
		if d.Action == SkillDeleted {
			continue
		}
		name := d.SkillFinal
		if name == "" {
			name = src.Name
		}
		out = append(out, resumes.Skill{Name: name, Proficiency: src.Proficiency})
	}
	return out
}

func skillNames(skills []resumes.Skill) []string {
	var out []string
	for _, s := range skills {
		out = append(out, s.Name)
	}
	return out
}

func normalizeSkill(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
