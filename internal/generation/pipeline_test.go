package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"cvadapt-backend/internal/jobpostings"
	"cvadapt-backend/internal/llm"
	"cvadapt-backend/internal/resumes"
)

// scriptedLLM answers each request from a canned response keyed by schema
// name. It records every request for assertions.
type scriptedLLM struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	condErrs  []scriptedFailure
	requests  []llm.Request
}

// scriptedFailure fails calls of one schema whose prompt mentions a marker,
// so a single offer can fail while its siblings succeed.
type scriptedFailure struct {
	schemaName string
	marker     string
	err        error
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{
		responses: map[string]string{
			"job_posting_extraction": defaultExtractionJSON,
			"cv_classification":      defaultClassificationJSON,
			"adapted_experience":     defaultExperienceJSON,
			"adapted_project":        defaultProjectJSON,
			"adapted_extras":         defaultExtrasJSON,
			"skills_review":          defaultSkillsJSON,
			"adapted_summary":        defaultSummaryJSON,
			"adapted_languages":      defaultLanguagesJSON,
		},
	}
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if err := s.errs[req.SchemaName]; err != nil {
		return nil, err
	}
	for _, f := range s.condErrs {
		if f.schemaName == req.SchemaName && strings.Contains(req.System+req.User, f.marker) {
			return nil, f.err
		}
	}
	content, ok := s.responses[req.SchemaName]
	if !ok {
		return nil, fmt.Errorf("no scripted response for %s", req.SchemaName)
	}
	return &llm.Completion{
		Content: json.RawMessage(content),
		Model:   req.Model,
		Usage:   llm.Usage{PromptTokens: 100, CachedTokens: 40, CompletionTokens: 50, TotalTokens: 150},
	}, nil
}

func (s *scriptedLLM) fail(schemaName string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs == nil {
		s.errs = map[string]error{}
	}
	s.errs[schemaName] = err
}

func (s *scriptedLLM) failWhen(schemaName, marker string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.condErrs = append(s.condErrs, scriptedFailure{schemaName: schemaName, marker: marker, err: err})
}

func (s *scriptedLLM) requestsFor(schemaName string) []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []llm.Request
	for _, req := range s.requests {
		if req.SchemaName == schemaName {
			out = append(out, req)
		}
	}
	return out
}

const defaultExtractionJSON = `{
	"title": "Backend Engineer",
	"company": "Globex",
	"location": "Lyon",
	"description": "Construire des services Go. Anglais courant demande.",
	"responsibilities": ["Concevoir des APIs", "Exploiter des services"],
	"skills": {
		"hard_skills": {"required": ["Go", "PostgreSQL"], "nice_to_have": ["Kafka"]},
		"tools": {"required": ["Docker"], "nice_to_have": []},
		"methodologies": {"required": ["Scrum"], "nice_to_have": []},
		"soft_skills": ["Communication"]
	}
}`

const defaultClassificationJSON = `{
	"experiences": [
		{"index": 0, "action": "KEEP", "reason": "directly relevant"},
		{"index": 1, "action": "KEEP", "reason": "relevant"}
	],
	"projects": [
		{"index": 0, "action": "KEEP", "reason": "shows the stack"}
	]
}`

const defaultExperienceJSON = `{
	"title": "Backend Engineer",
	"company": "Acme",
	"start_date": "2020-01",
	"end_date": "present",
	"description": "Builds Go services for payments.",
	"responsibilities": ["Design APIs", "Operate services"],
	"deliverables": ["Cut p99 latency by 40%", "Important work"],
	"skills_used": ["Go", "PostgreSQL"],
	"domain": "Backend",
	"years_in_domain": 4,
	"modifications": [
		{"section": "experience", "field": "description", "change_type": "modified", "before": "old", "after": "new", "reason": "match posting"}
	]
}`

const defaultProjectJSON = `{
	"name": "Payments gateway",
	"role": "Lead developer",
	"start_date": "2021-01",
	"end_date": "2021-06",
	"summary": "Built a payments gateway in Go.",
	"tech_stack": ["Go", "Redis"],
	"url": null,
	"modifications": []
}`

const defaultExtrasJSON = `{
	"extras": [{"name": "Certification", "description": "AWS Solutions Architect"}],
	"modifications": []
}`

const defaultSkillsJSON = `{
	"hard_skills": [
		{"original_value": "Go", "skill_final": "Go", "action": "kept", "reason": "requested"},
		{"original_value": "JS", "skill_final": "JavaScript", "action": "renamed", "reason": "standard name"}
	],
	"soft_skills": [
		{"original_value": "Communication", "skill_final": "Communication", "action": "kept", "reason": "requested"}
	],
	"tools": [
		{"original_value": "Docker", "skill_final": "Docker", "action": "kept", "reason": "requested"}
	],
	"methodologies": [
		{"original_value": "Scrum", "skill_final": "Scrum", "action": "kept", "reason": "requested"}
	],
	"modifications": []
}`

const defaultSummaryJSON = `{
	"headline": "model headline",
	"description": "Backend engineer shipping Go services.",
	"years_experience": 6,
	"domains": ["Backend", "Data", "Infra", "Mobile"],
	"key_strengths": ["Go", "APIs", "Operations"],
	"modifications": []
}`

const defaultLanguagesJSON = `{
	"languages": [{"name": "Anglais", "level": "C1"}],
	"modifications": []
}`

func testDocument() resumes.Document {
	return resumes.Document{
		Header: resumes.Header{Name: "Jean Martin", CurrentTitle: "Developpeur"},
		Summary: resumes.Summary{
			Headline:    "Developpeur backend",
			Description: "Huit ans de developpement backend.",
		},
		Skills: resumes.Skills{
			HardSkills:    []resumes.Skill{{Name: "Go", Proficiency: "expert"}, {Name: "JS", Proficiency: "advanced"}},
			SoftSkills:    []string{"Communication"},
			Tools:         []resumes.Skill{{Name: "Docker"}},
			Methodologies: []string{"Scrum"},
		},
		Experiences: []resumes.Experience{
			{
				Title:        "Backend Engineer",
				Company:      "Acme",
				StartDate:    "2020-01",
				EndDate:      "present",
				Description:  "Services Go.",
				Deliverables: []string{"Cut p99 latency by 40%"},
				SkillsUsed:   []string{"Go", "PostgreSQL"},
			},
			{
				Title:      "Developer",
				Company:    "Beta",
				StartDate:  "2015-01",
				EndDate:    "2018-01",
				SkillsUsed: []string{"JS"},
			},
		},
		Projects: []resumes.Project{
			{Name: "Payments gateway", Summary: "Gateway de paiement.", TechStack: []string{"Go", "Redis"}},
		},
		Education: []resumes.Education{{Institution: "INSA Lyon", Degree: "Ingenieur"}},
		Languages: []resumes.Language{{Name: "Anglais", Level: "courant"}},
		Extras:    []resumes.Extra{{Name: "Certification", Description: "AWS"}},
	}
}

func testPosting() jobpostings.JobPosting {
	return jobpostings.JobPosting{
		ID:     "posting-1",
		UserID: "user-1",
		Title:  "Backend Engineer",
		Content: jobpostings.Content{
			Title:            "Backend Engineer",
			Company:          "Globex",
			Description:      "Construire des services Go. Anglais courant demande.",
			Responsibilities: []string{"Concevoir des APIs", "Exploiter des services", "Encadrer", "Documenter", "Superviser", "Migrer"},
			Skills: jobpostings.SkillRequirements{
				HardSkills:    jobpostings.RequirementGroup{Required: []string{"Go", "PostgreSQL"}, NiceToHave: []string{"Kafka"}},
				Tools:         jobpostings.RequirementGroup{Required: []string{"Docker"}},
				Methodologies: jobpostings.RequirementGroup{Required: []string{"Scrum"}},
				SoftSkills:    []string{"Communication"},
			},
		},
	}
}

func newTestPipeline(t *testing.T, client llm.Client) (*pipeline, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	task := Task{ID: "task-1", UserID: "user-1", ResumeID: "resume-1", Mode: ModeSingle, Status: TaskRunning, CreditCost: 1, TotalOffers: 1}
	offer := Offer{ID: "offer-1", TaskID: task.ID, OfferIndex: 0, JobPostingID: "posting-1", Status: OfferRunning}
	if err := repo.CreateTask(context.Background(), task, []Offer{offer}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return &pipeline{repo: repo, llm: client, task: task, offer: offer}, repo
}

// disableBackoff removes real sleeps from the retry loop for the duration
// of a test.
func disableBackoff(t *testing.T) {
	t.Helper()
	orig := sleep
	sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	t.Cleanup(func() { sleep = orig })
}

// freezeNow pins the clock used for date arithmetic.
func freezeNow(t *testing.T, at time.Time) {
	t.Helper()
	orig := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = orig })
}
