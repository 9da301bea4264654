package generation

import (
	"strings"
	"testing"

	"cvadapt-backend/internal/resumes"
)

func TestBuildCacheACapsResponsibilities(t *testing.T) {
	cacheA := buildCacheA(testPosting())

	if !strings.HasPrefix(cacheA, "# OFFRE D'EMPLOI - Responsabilites cibles\n\n") {
		t.Fatalf("unexpected prefix: %q", cacheA[:40])
	}
	if !strings.HasSuffix(cacheA, "\n\n---\n\n") {
		t.Fatalf("missing separator suffix")
	}
	if got := strings.Count(cacheA, "\n- "); got != 4 {
		// Five bullets total, the first one has no leading newline.
		t.Fatalf("bullet count = %d, want 4", got+1)
	}
	if strings.Contains(cacheA, "Migrer") {
		t.Fatalf("sixth responsibility should be dropped")
	}
}

func TestBuildCacheAWithoutResponsibilities(t *testing.T) {
	posting := testPosting()
	posting.Content.Responsibilities = nil

	if !strings.Contains(buildCacheA(posting), "(non specifie)") {
		t.Fatalf("expected placeholder for missing responsibilities")
	}
}

func TestBuildCacheBIsStableAcrossCalls(t *testing.T) {
	posting := testPosting()
	experiences := []resumes.Experience{{Title: "Backend Engineer", Company: "Acme", SkillsUsed: []string{"Go", "PostgreSQL", "Redis", "Kafka", "Docker", "Extra"}}}
	projects := []resumes.Project{{Name: "Gateway", TechStack: []string{"Go"}}}

	first := buildCacheB(posting, experiences, projects)
	second := buildCacheB(posting, experiences, projects)
	if first != second {
		t.Fatalf("cache B must be byte-stable for identical inputs")
	}
	if !strings.Contains(first, "- Backend Engineer @ Acme | Skills: Go, PostgreSQL, Redis, Kafka, Docker") {
		t.Fatalf("missing compact experience line:\n%s", first)
	}
	if strings.Contains(first, "Extra") {
		t.Fatalf("skills in cache B should be capped at five")
	}
	if !strings.Contains(first, "- Gateway | Tech: Go") {
		t.Fatalf("missing compact project line")
	}
	if !strings.Contains(first, "**Competences demandees:**\nGo, PostgreSQL, Docker, Scrum") {
		t.Fatalf("missing combined required skills:\n%s", first)
	}
}

func TestBuildCacheBEmptySections(t *testing.T) {
	cacheB := buildCacheB(testPosting(), nil, nil)
	if !strings.Contains(cacheB, "# EXPERIENCES ADAPTEES\nAucune") {
		t.Fatalf("expected Aucune for empty experiences")
	}
	if !strings.Contains(cacheB, "# PROJETS ADAPTES\nAucun") {
		t.Fatalf("expected Aucun for empty projects")
	}
}

func TestBuildCachedSystemPromptPutsPrefixFirst(t *testing.T) {
	prompt := buildCachedSystemPrompt("PREFIX\n", "instructions")
	if !strings.HasPrefix(prompt, "PREFIX\n") {
		t.Fatalf("cache prefix must lead the prompt")
	}
	if !strings.HasSuffix(prompt, "instructions") {
		t.Fatalf("instructions must follow the prefix")
	}
}
