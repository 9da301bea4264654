package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cvadapt-backend/internal/jobpostings"
	"cvadapt-backend/internal/llm"
	"cvadapt-backend/internal/resumes"
	"cvadapt-backend/internal/shared/telemetry"
)

// adaptedSections collects the outputs of all batch phases before assembly.
type adaptedSections struct {
	Experiences   []resumes.Experience
	Projects      []resumes.Project
	Skills        resumes.Skills
	Summary       resumes.Summary
	Extras        []resumes.Extra
	Languages     []resumes.Language
	Modifications []resumes.Modification
}

// composeDocument assembles the final CV. Sections the pipeline never
// touches (education, section order) carry over from the source. The
// displayed title becomes the posting title.
func composeDocument(source resumes.Document, posting jobpostings.JobPosting, sections adaptedSections) resumes.Document {
	header := source.Header
	if title := posting.Content.Title; title != "" {
		header.CurrentTitle = title
	}
	return resumes.Document{
		GeneratedAt:  now().UTC().Format(time.RFC3339),
		Header:       header,
		Summary:      sections.Summary,
		Skills:       sections.Skills,
		Experiences:  sections.Experiences,
		Projects:     sections.Projects,
		Education:    source.Education,
		Languages:    sections.Languages,
		Extras:       sections.Extras,
		SectionOrder: source.SectionOrder,
	}
}

// generateFileName derives the adapted CV file name from the source name
// and the posting title. Timestamp plus random suffix keeps repeated runs
// against the same offer distinct.
func generateFileName(sourceFileName, postingTitle string) string {
	base := strings.TrimSuffix(sourceFileName, ".json")
	title := slugifyTitle(postingTitle)
	timestamp := now().UTC().Format("20060102150405")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
	return fmt.Sprintf("%s_adapted_%s_%s_%s.json", base, title, timestamp, suffix)
}

func slugifyTitle(title string) string {
	if title == "" {
		title = "offer"
	}
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 30 {
		slug = slug[:30]
	}
	if slug == "" {
		slug = "offer"
	}
	return slug
}

// languageMentionPatterns maps a canonical language to the spellings that
// mark it as requested in a posting.
var languageMentionPatterns = []struct {
	lang     string
	patterns []string
}{
	{"Francais", []string{"français", "francais", "french"}},
	{"Anglais", []string{"anglais", "english"}},
	{"Allemand", []string{"allemand", "german", "deutsch"}},
	{"Espagnol", []string{"espagnol", "spanish", "español"}},
	{"Italien", []string{"italien", "italian", "italiano"}},
	{"Portugais", []string{"portugais", "portuguese", "português"}},
	{"Neerlandais", []string{"néerlandais", "neerlandais", "dutch"}},
	{"Chinois", []string{"chinois", "chinese", "mandarin"}},
	{"Japonais", []string{"japonais", "japanese"}},
	{"Arabe", []string{"arabe", "arabic"}},
}

// detectLanguageMentions scans the posting text for requested languages.
func detectLanguageMentions(content jobpostings.Content) []string {
	parts := []string{content.Title, content.Description}
	parts = append(parts, content.Skills.AllRequired()...)
	parts = append(parts, content.Skills.AllNiceToHave()...)
	text := strings.ToLower(strings.Join(parts, " "))

	var mentions []string
	for _, entry := range languageMentionPatterns {
		for _, pattern := range entry.patterns {
			if strings.Contains(text, pattern) {
				mentions = append(mentions, entry.lang)
				break
			}
		}
	}
	return mentions
}

var languagesSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["languages", "modifications"],
  "properties": {
    "languages": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name", "level"],
        "properties": {
          "name": {"type": "string"},
          "level": {"type": "string"}
        }
      }
    },
    "modifications": {"$ref": "#/$defs/modifications"}
  },
  "$defs": {"modifications": ` + modificationsSchema + `}
}`)

const languagesInstructions = `Tu revois la section langues d'un CV par rapport aux langues demandees par l'offre.
Regles:
- Reformule les niveaux au standard CECRL quand c'est possible (A1 a C2, ou "courant", "bilingue", "natif").
- Mets en premier les langues demandees par l'offre.
- N'ajoute JAMAIS une langue absente du CV et ne change JAMAIS le niveau reel.
- Liste chaque changement dans modifications.`

type adaptedLanguages struct {
	Languages     []resumes.Language     `json:"languages"`
	Modifications []resumes.Modification `json:"modifications"`
}

// adaptLanguages reorders and normalizes the languages section when the
// posting asks for a language the candidate has. Anything else keeps the
// source untouched, including any failure of the call itself.
func (p *pipeline) adaptLanguages(ctx context.Context, model string, languages []resumes.Language, posting jobpostings.JobPosting, targetLanguage string) ([]resumes.Language, []resumes.Modification, error) {
	if len(languages) == 0 {
		return nil, nil, nil
	}
	mentions := detectLanguageMentions(posting.Content)
	if len(mentions) == 0 || !anyLanguageMatch(languages, mentions) {
		return languages, nil, nil
	}

	payload, err := json.MarshalIndent(languages, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	user := fmt.Sprintf("Langue cible: %s\n\nLangues demandees par l'offre: %s\n\n# LANGUES DU CV\n%s",
		targetLanguage, strings.Join(mentions, ", "), payload)

	out, err := p.runSubtask(ctx, PhaseRecompose, 0, llm.Request{
		Model:       model,
		System:      languagesInstructions,
		User:        user,
		SchemaName:  "adapted_languages",
		Schema:      languagesSchema,
		Temperature: 0.2,
		MaxTokens:   500,
	})
	if err != nil {
		if IsCancellation(err) {
			return nil, nil, err
		}
		telemetry.Warn("generation.languages_fallback", map[string]any{"offer": p.offer.ID, "error": err.Error()})
		return languages, nil, nil
	}

	var adapted adaptedLanguages
	if err := json.Unmarshal(out.Content, &adapted); err != nil {
		telemetry.Warn("generation.languages_fallback", map[string]any{"offer": p.offer.ID, "error": err.Error()})
		return languages, nil, nil
	}
	if len(adapted.Languages) != len(languages) {
		telemetry.Warn("generation.languages_fallback", map[string]any{"offer": p.offer.ID, "error": "language count changed"})
		return languages, nil, nil
	}
	return adapted.Languages, adapted.Modifications, nil
}

func anyLanguageMatch(languages []resumes.Language, mentions []string) bool {
	for _, mention := range mentions {
		m := strings.ToLower(mention)
		for _, lang := range languages {
			l := strings.ToLower(lang.Name)
			if strings.Contains(l, m) || strings.Contains(m, l) {
				return true
			}
		}
	}
	return false
}
