package resumes

import "time"

// Document is the structured CV content stored as JSONB. Section field names
// follow the wire format consumed by exporters and the generation pipeline.
type Document struct {
	GeneratedAt  string       `json:"generated_at,omitempty"`
	Header       Header       `json:"header"`
	Summary      Summary      `json:"summary"`
	Skills       Skills       `json:"skills"`
	Experiences  []Experience `json:"experience"`
	Projects     []Project    `json:"projects,omitempty"`
	Education    []Education  `json:"education,omitempty"`
	Languages    []Language   `json:"languages,omitempty"`
	Extras       []Extra      `json:"extras,omitempty"`
	SectionOrder []string     `json:"section_order,omitempty"`
}

// Header carries candidate identity and the displayed title.
type Header struct {
	Name         string   `json:"name"`
	CurrentTitle string   `json:"current_title"`
	Email        string   `json:"email,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Location     Location `json:"location,omitempty"`
}

type Location struct {
	City        string `json:"city,omitempty"`
	Region      string `json:"region,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

// Summary is the profile section, partly derived from deterministic facts
// computed over the experiences.
type Summary struct {
	Headline        string   `json:"headline"`
	Description     string   `json:"description"`
	YearsExperience float64  `json:"years_experience,omitempty"`
	Domains         []string `json:"domains,omitempty"`
	KeyStrengths    []string `json:"key_strengths,omitempty"`
}

// Skills groups the four skill categories. Hard skills and tools carry a
// proficiency level, soft skills and methodologies are plain labels.
type Skills struct {
	HardSkills    []Skill  `json:"hard_skills"`
	SoftSkills    []string `json:"soft_skills"`
	Tools         []Skill  `json:"tools"`
	Methodologies []string `json:"methodologies"`
}

type Skill struct {
	Name        string `json:"name"`
	Proficiency string `json:"proficiency,omitempty"`
}

type Experience struct {
	Title            string   `json:"title"`
	Company          string   `json:"company"`
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	Description      string   `json:"description,omitempty"`
	Responsibilities []string `json:"responsibilities,omitempty"`
	Deliverables     []string `json:"deliverables,omitempty"`
	SkillsUsed       []string `json:"skills_used,omitempty"`
	Domain           string   `json:"domain,omitempty"`
	YearsInDomain    float64  `json:"years_in_domain,omitempty"`
}

// Project is a portfolio entry. Entries converted from an experience by the
// classification phase keep the original experience for prompt context.
type Project struct {
	Name                 string      `json:"name"`
	Role                 string      `json:"role"`
	StartDate            string      `json:"start_date,omitempty"`
	EndDate              string      `json:"end_date,omitempty"`
	Summary              string      `json:"summary"`
	TechStack            []string    `json:"tech_stack,omitempty"`
	URL                  string      `json:"url,omitempty"`
	FromExperience       bool        `json:"from_experience,omitempty"`
	ClassificationReason string      `json:"classification_reason,omitempty"`
	OriginalExperience   *Experience `json:"original_experience,omitempty"`
}

type Education struct {
	Institution  string `json:"institution"`
	Degree       string `json:"degree,omitempty"`
	FieldOfStudy string `json:"field_of_study,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
}

type Language struct {
	Name  string `json:"name"`
	Level string `json:"level"`
}

// Extra covers the remaining CV items: volunteering, hobbies, availability,
// driving license and similar.
type Extra struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Modification is one reported change between the source document and an
// adapted one, flattened from the per-phase LLM outputs.
type Modification struct {
	Section    string `json:"section"`
	Field      string `json:"field,omitempty"`
	ChangeType string `json:"change_type"`
	Before     string `json:"before,omitempty"`
	After      string `json:"after,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Resume is a stored source CV.
type Resume struct {
	ID        string
	UserID    string
	FileName  string
	Content   Document
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GeneratedResume is an adapted CV produced by the generation pipeline.
type GeneratedResume struct {
	ID             string
	UserID         string
	SourceResumeID string
	OfferID        string
	FileName       string
	Content        Document
	Modifications  []Modification
	CreatedAt      time.Time
}

// Version is a content snapshot of a generated resume. Version 0 is the
// source document at generation time and serves as the diff baseline.
type Version struct {
	ID                string
	GeneratedResumeID string
	Version           int
	Content           Document
	Label             string
	CreatedAt         time.Time
}
