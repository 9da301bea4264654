package jobpostings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cvadapt-backend/internal/llm"
	"cvadapt-backend/internal/shared/telemetry"
)

// Source identifies where a posting comes from. Exactly one field is set:
// a fetchable URL, inline PDF bytes, or pasted text.
type Source struct {
	URL  string
	PDF  []byte
	Text string
}

// Service stages and caches job postings. Extraction itself runs inside the
// generation pipeline, staging only records the source and its hash.
type Service struct {
	Repo    Repo
	Fetcher Fetcher
}

// Stage registers a posting source for a user without touching the network
// or the model. A source already extracted for the user is reused, the
// second return value reports that hit. Anything else gets a bare row whose
// content the pipeline fills in later.
func (s *Service) Stage(ctx context.Context, userID string, src Source) (JobPosting, bool, error) {
	if userID == "" {
		return JobPosting{}, false, ErrInvalidInput
	}

	rawText, sourceHash, err := resolveSource(src)
	if err != nil {
		return JobPosting{}, false, err
	}

	cached, err := s.Repo.FindBySourceHash(ctx, userID, sourceHash)
	if err == nil {
		if cached.Title != "" {
			telemetry.Info("jobposting.cache_hit", map[string]any{
				"user_id":     userID,
				"posting_id":  cached.ID,
				"source_hash": sourceHash,
			})
			return cached, true, nil
		}
		// An earlier task staged this source but never finished extracting
		// it. Reuse the row, the pipeline will fill it in.
		return cached, false, nil
	}
	if err != ErrNotFound {
		return JobPosting{}, false, err
	}

	posting := JobPosting{
		ID:         uuid.NewString(),
		UserID:     userID,
		SourceURL:  src.URL,
		SourceHash: sourceHash,
		RawText:    rawText,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, posting); err != nil {
		return JobPosting{}, false, err
	}

	telemetry.Info("jobposting.staged", map[string]any{
		"user_id":     userID,
		"posting_id":  posting.ID,
		"source_hash": sourceHash,
	})
	return posting, false, nil
}

// ResolveText returns the raw posting text, fetching the source URL when the
// posting was staged from one.
func (s *Service) ResolveText(ctx context.Context, posting JobPosting) (string, error) {
	if posting.RawText != "" {
		return posting.RawText, nil
	}
	if posting.SourceURL == "" {
		return "", fmt.Errorf("%w: posting has no text and no source url", ErrInvalidInput)
	}
	return s.Fetcher.FetchText(ctx, posting.SourceURL)
}

// StoreExtraction persists the structured content the pipeline extracted.
func (s *Service) StoreExtraction(ctx context.Context, postingID, rawText string, content Content) error {
	if postingID == "" {
		return ErrInvalidInput
	}
	return s.Repo.SetContent(ctx, postingID, rawText, content)
}

// GetByID returns a stored posting.
func (s *Service) GetByID(ctx context.Context, postingID string) (JobPosting, error) {
	if postingID == "" {
		return JobPosting{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, postingID)
}

// ExtractionRequest builds the structured-output call that turns raw posting
// text into Content.
func ExtractionRequest(model, rawText string) llm.Request {
	return llm.Request{
		Model:       model,
		System:      extractionSystemPrompt,
		User:        "Extract the job posting from this text:\n\n" + rawText,
		SchemaName:  "job_posting_extraction",
		Schema:      extractionSchema,
		Temperature: 0.1,
	}
}

// ParseExtraction decodes a model completion into Content. A posting without
// a title is unusable downstream and rejected here.
func ParseExtraction(raw []byte) (Content, error) {
	var content Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return Content{}, fmt.Errorf("parse extraction output: %w", err)
	}
	if strings.TrimSpace(content.Title) == "" {
		return Content{}, fmt.Errorf("%w: extraction produced no title", ErrInvalidInput)
	}
	return content, nil
}

// resolveSource normalizes a source into local text plus a cache hash. URL
// sources hash the URL itself so staging never needs the network, their text
// is fetched later by the pipeline.
func resolveSource(src Source) (string, string, error) {
	switch {
	case strings.TrimSpace(src.URL) != "":
		return "", hashSource(src.URL), nil
	case len(src.PDF) > 0:
		text, err := PDFText(src.PDF)
		if err != nil {
			return "", "", err
		}
		return text, hashBytes(src.PDF), nil
	case strings.TrimSpace(src.Text) != "":
		text := strings.TrimSpace(src.Text)
		return text, hashSource(text), nil
	default:
		return "", "", fmt.Errorf("%w: empty posting source", ErrInvalidInput)
	}
}

func hashSource(s string) string {
	return hashBytes([]byte(s))
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
