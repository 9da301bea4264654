package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"cvadapt-backend/internal/events"
	"cvadapt-backend/internal/jobpostings"
	"cvadapt-backend/internal/llm"
	"cvadapt-backend/internal/resumes"
)

const (
	maxSummaryDomains   = 3
	maxSummaryStrengths = 5
)

// now is swapped out in tests so date arithmetic is deterministic.
var now = time.Now

type summaryResult struct {
	Headline        string                 `json:"headline"`
	Description     string                 `json:"description"`
	YearsExperience float64                `json:"years_experience"`
	Domains         []string               `json:"domains"`
	KeyStrengths    []string               `json:"key_strengths"`
	Modifications   []resumes.Modification `json:"modifications"`
}

// runBatchSummary writes the profile section from the adapted experiences.
// Duration and domain figures are computed here, not asked from the model.
func (p *pipeline) runBatchSummary(ctx context.Context, model, cacheB string, doc resumes.Document, adapted []resumes.Experience, posting jobpostings.JobPosting, targetLanguage string) (resumes.Summary, []resumes.Modification, error) {
	p.publish(ctx, PhaseSummary, "start", events.StatusRunning, 0, 1, "")

	facts := computeExperienceFacts(adapted)
	domains := aggregateDomains(adapted)

	var user strings.Builder
	fmt.Fprintf(&user, "Langue cible: %s\n\n", targetLanguage)
	fmt.Fprintf(&user, "# FAITS CALCULES (a reprendre tels quels)\n")
	fmt.Fprintf(&user, "Annees d'experience totales: %d\n", facts.TotalYears)
	fmt.Fprintf(&user, "Titres actuels: %s\n", joinOrDefault(facts.CurrentTitles))
	fmt.Fprintf(&user, "Experience par domaine:\n%s\n\n", domainsSummaryText(domains))
	fmt.Fprintf(&user, "Durees par experience:\n%s\n\n", joinLines(facts.Durations))
	if doc.Summary.Description != "" {
		fmt.Fprintf(&user, "# RESUME SOURCE\n%s\n", doc.Summary.Description)
	}

	out, err := p.runSubtask(ctx, PhaseSummary, 0, llm.Request{
		Model:       model,
		System:      buildCachedSystemPrompt(cacheB, summaryInstructions),
		User:        user.String(),
		SchemaName:  "adapted_summary",
		Schema:      summarySchema,
		Temperature: 0.3,
		MaxTokens:   1500,
	})
	if err != nil {
		return resumes.Summary{}, nil, err
	}

	var result summaryResult
	if err := json.Unmarshal(out.Content, &result); err != nil {
		return resumes.Summary{}, nil, fmt.Errorf("parse summary output: %w", err)
	}

	summary := resumes.Summary{
		Headline:        result.Headline,
		Description:     result.Description,
		YearsExperience: clampYears(result.YearsExperience),
		Domains:         capStrings(result.Domains, maxSummaryDomains),
		KeyStrengths:    capStrings(result.KeyStrengths, maxSummaryStrengths),
	}
	// The headline is the posting title, the model has no say in it.
	if title := posting.Content.Title; title != "" {
		summary.Headline = title
	}

	p.publish(ctx, PhaseSummary, "done", events.StatusCompleted, 1, 1, "")
	return summary, result.Modifications, nil
}

// experienceFacts are the deterministic figures fed into the summary prompt.
type experienceFacts struct {
	Durations     []string
	TotalYears    int
	CurrentTitles []string
}

// computeExperienceFacts derives tenure figures from the professional
// experiences, meaning those with a company set. Total years run from the
// earliest start date to today.
func computeExperienceFacts(experiences []resumes.Experience) experienceFacts {
	var facts experienceFacts
	var earliest time.Time
	type tenure struct {
		label  string
		months int
	}
	var tenures []tenure
	seenTitles := map[string]bool{}

	for _, exp := range experiences {
		if strings.TrimSpace(exp.Company) == "" {
			continue
		}
		months := durationMonths(exp.StartDate, exp.EndDate)
		years := math.Round(float64(months)/12*10) / 10
		current := isCurrent(exp.EndDate)

		title := exp.Title
		if title == "" {
			title = "Non specifie"
		}
		label := fmt.Sprintf("%s (%s): %s", title, exp.Company, formatYears(years))
		if current {
			label += " - en cours"
		}
		tenures = append(tenures, tenure{label: label, months: months})

		if current && !seenTitles[title] {
			seenTitles[title] = true
			facts.CurrentTitles = append(facts.CurrentTitles, title)
		}
		if start, ok := parseCVDate(exp.StartDate); ok {
			if earliest.IsZero() || start.Before(earliest) {
				earliest = start
			}
		}
	}

	sort.SliceStable(tenures, func(i, j int) bool { return tenures[i].months > tenures[j].months })
	for _, t := range tenures {
		facts.Durations = append(facts.Durations, t.label)
	}
	if !earliest.IsZero() {
		facts.TotalYears = int(math.Round(now().Sub(earliest).Hours() / 24 / 365))
	}
	return facts
}

// durationMonths returns whole months between two CV dates. An empty or
// "present" end date means today.
func durationMonths(startDate, endDate string) int {
	start, ok := parseCVDate(startDate)
	if !ok {
		return 0
	}
	end := now()
	if endDate != "" && !strings.EqualFold(endDate, "present") {
		parsed, ok := parseCVDate(endDate)
		if !ok {
			return 0
		}
		end = parsed
	}
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if months < 0 {
		return 0
	}
	return months
}

func isCurrent(endDate string) bool {
	return endDate == "" || strings.EqualFold(endDate, "present")
}

func parseCVDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type domainTotal struct {
	Domain string
	Years  float64
}

// aggregateDomains sums years_in_domain per domain, largest first.
func aggregateDomains(experiences []resumes.Experience) []domainTotal {
	totals := map[string]float64{}
	var order []string
	for _, exp := range experiences {
		domain := exp.Domain
		if domain == "" {
			domain = "Autre"
		}
		if _, seen := totals[domain]; !seen {
			order = append(order, domain)
		}
		totals[domain] += exp.YearsInDomain
	}
	out := make([]domainTotal, 0, len(order))
	for _, domain := range order {
		out = append(out, domainTotal{Domain: domain, Years: math.Round(totals[domain]*10) / 10})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Years > out[j].Years })
	return out
}

func domainsSummaryText(domains []domainTotal) string {
	if len(domains) == 0 {
		return "Non disponible"
	}
	var b strings.Builder
	for i, d := range domains {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s", d.Domain, formatYears(d.Years))
	}
	return b.String()
}

func formatYears(years float64) string {
	unit := "an"
	if years > 1 {
		unit = "ans"
	}
	return fmt.Sprintf("%g %s", years, unit)
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return "Non disponible"
	}
	return strings.Join(lines, "\n")
}

func clampYears(years float64) float64 {
	if years < 0 {
		return 0
	}
	if years > 50 {
		return 50
	}
	return years
}

func capStrings(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
