package jobpostings

import "time"

// JobPosting is a structured job offer extracted from a URL, a PDF or pasted
// text. SourceHash deduplicates extractions of the same source.
type JobPosting struct {
	ID         string
	UserID     string
	SourceURL  string
	SourceHash string
	Title      string
	RawText    string
	Content    Content
	CreatedAt  time.Time
}

// Content is the structured posting payload produced by the extraction call.
type Content struct {
	Title            string            `json:"title"`
	Company          string            `json:"company,omitempty"`
	Location         string            `json:"location,omitempty"`
	Description      string            `json:"description,omitempty"`
	Responsibilities []string          `json:"responsibilities,omitempty"`
	Skills           SkillRequirements `json:"skills"`
}

// SkillRequirements groups requested skills into the four posting categories.
// Hard skills, tools and methodologies split required vs nice-to-have.
type SkillRequirements struct {
	HardSkills    RequirementGroup `json:"hard_skills"`
	Tools         RequirementGroup `json:"tools"`
	Methodologies RequirementGroup `json:"methodologies"`
	SoftSkills    []string         `json:"soft_skills"`
}

type RequirementGroup struct {
	Required   []string `json:"required"`
	NiceToHave []string `json:"nice_to_have"`
}

// AllRequired returns the required skills of the three leveled categories.
func (s SkillRequirements) AllRequired() []string {
	out := make([]string, 0, len(s.HardSkills.Required)+len(s.Tools.Required)+len(s.Methodologies.Required))
	out = append(out, s.HardSkills.Required...)
	out = append(out, s.Tools.Required...)
	out = append(out, s.Methodologies.Required...)
	return out
}

// AllNiceToHave returns the nice-to-have skills of the three leveled
// categories.
func (s SkillRequirements) AllNiceToHave() []string {
	out := make([]string, 0, len(s.HardSkills.NiceToHave)+len(s.Tools.NiceToHave)+len(s.Methodologies.NiceToHave))
	out = append(out, s.HardSkills.NiceToHave...)
	out = append(out, s.Tools.NiceToHave...)
	out = append(out, s.Methodologies.NiceToHave...)
	return out
}

// AllMethodologies returns required and nice-to-have methodologies combined.
func (s SkillRequirements) AllMethodologies() []string {
	out := make([]string, 0, len(s.Methodologies.Required)+len(s.Methodologies.NiceToHave))
	out = append(out, s.Methodologies.Required...)
	out = append(out, s.Methodologies.NiceToHave...)
	return out
}
