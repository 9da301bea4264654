package generation

import (
	"fmt"
	"strings"

	"cvadapt-backend/internal/jobpostings"
	"cvadapt-backend/internal/resumes"
)

// Prompt caching relies on stable prefixes: identical leading bytes across
// calls let the provider reuse cached attention state. Two prefixes cover the
// pipeline. Cache A carries only the job offer and is shared by the
// experiences, projects and extras phases. Cache B adds the already adapted
// sections and is shared by the skills and summary phases.

const maxResponsibilities = 5

// buildCacheA renders the job offer prefix used by the parallel batch phases.
func buildCacheA(posting jobpostings.JobPosting) string {
	return fmt.Sprintf("# OFFRE D'EMPLOI - Responsabilites cibles\n\n%s\n\n---\n\n",
		formatResponsibilities(posting.Content.Responsibilities))
}

// jobResponsibilities returns the posting responsibilities as bullets for
// user prompts, capped at maxResponsibilities.
func jobResponsibilities(posting jobpostings.JobPosting) string {
	return formatResponsibilities(posting.Content.Responsibilities)
}

func formatResponsibilities(items []string) string {
	if len(items) == 0 {
		return "(non specifie)"
	}
	if len(items) > maxResponsibilities {
		items = items[:maxResponsibilities]
	}
	var b strings.Builder
	for i, r := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(r)
	}
	return b.String()
}

// buildCacheB renders the job offer plus compact summaries of the adapted
// experiences and projects. Skills and summary see the same prefix so the
// second call hits the provider cache.
func buildCacheB(posting jobpostings.JobPosting, experiences []resumes.Experience, projects []resumes.Project) string {
	content := posting.Content
	skills := content.Skills

	title := content.Title
	if title == "" {
		title = "Non specifie"
	}

	var b strings.Builder
	b.WriteString("# OFFRE D'EMPLOI CIBLE (pour reference uniquement)\n\n")
	b.WriteString("NE PAS ajouter de mots-cles de cette offre si l'experience ne les contient pas.\n\n")
	fmt.Fprintf(&b, "**Titre du poste vise:** %s\n\n", title)
	fmt.Fprintf(&b, "**Competences demandees:**\n%s\n\n", joinOrDefault(skills.AllRequired()))
	fmt.Fprintf(&b, "**Competences appreciees:**\n%s\n\n", joinOrDefault(skills.AllNiceToHave()))
	fmt.Fprintf(&b, "**Soft skills:**\n%s\n\n", joinOrDefault(skills.SoftSkills))
	fmt.Fprintf(&b, "**Methodologies:**\n%s\n\n", joinOrDefault(skills.AllMethodologies()))
	fmt.Fprintf(&b, "**Missions du poste:**\n%s\n\n", formatResponsibilities(content.Responsibilities))

	b.WriteString("# EXPERIENCES ADAPTEES\n")
	if len(experiences) == 0 {
		b.WriteString("Aucune")
	}
	for i, exp := range experiences {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s @ %s | Skills: %s", exp.Title, exp.Company, strings.Join(firstN(exp.SkillsUsed, 5), ", "))
	}
	b.WriteString("\n\n# PROJETS ADAPTES\n")
	if len(projects) == 0 {
		b.WriteString("Aucun")
	}
	for i, proj := range projects {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s | Tech: %s", proj.Name, strings.Join(firstN(proj.TechStack, 5), ", "))
	}
	b.WriteString("\n\n---\n\n")
	return b.String()
}

// buildCachedSystemPrompt places the cache prefix before the phase specific
// instructions. The prefix must come first or the cache never hits.
func buildCachedSystemPrompt(cachePrefix, instructions string) string {
	return cachePrefix + instructions
}

func joinOrDefault(items []string) string {
	if len(items) == 0 {
		return "Non specifie"
	}
	return strings.Join(items, ", ")
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
