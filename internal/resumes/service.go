package resumes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"cvadapt-backend/internal/shared/util"
)

const maxDocumentBytes = 2 << 20 // 2MB of CV JSON is already generous

// Service contains business logic for source and generated resumes.
type Service struct {
	Repo      Repo
	Generated GeneratedRepo
}

// Upload parses and stores a source CV document for the user.
func (s *Service) Upload(ctx context.Context, userID, fileName string, r io.Reader) (Resume, error) {
	if userID == "" {
		return Resume{}, ErrInvalidInput
	}
	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return Resume{}, ErrInvalidInput
	}

	raw, err := io.ReadAll(io.LimitReader(r, maxDocumentBytes+1))
	if err != nil {
		return Resume{}, err
	}
	if len(raw) > maxDocumentBytes {
		return Resume{}, ErrInvalidInput
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Resume{}, ErrInvalidInput
	}
	if err := validateDocument(doc); err != nil {
		return Resume{}, err
	}

	now := time.Now().UTC()
	resume := Resume{
		ID:        uuid.NewString(),
		UserID:    userID,
		FileName:  sanitized,
		Content:   doc,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, resume); err != nil {
		return Resume{}, err
	}
	return resume, nil
}

// Get returns a source resume by ID for a user.
func (s *Service) Get(ctx context.Context, userID, resumeID string) (Resume, error) {
	if userID == "" || resumeID == "" {
		return Resume{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, userID, resumeID)
}

// List returns source resumes for a user ordered newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Resume, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// GetGenerated returns a generated resume by ID for a user.
func (s *Service) GetGenerated(ctx context.Context, userID, generatedResumeID string) (GeneratedResume, error) {
	if userID == "" || generatedResumeID == "" {
		return GeneratedResume{}, ErrInvalidInput
	}
	return s.Generated.GetByID(ctx, userID, generatedResumeID)
}

// ListGenerated returns generated resumes for a user ordered newest-first.
func (s *Service) ListGenerated(ctx context.Context, userID string, limit, offset int) ([]GeneratedResume, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.Generated.ListByUser(ctx, userID, limit, offset)
}

// GetSourceSnapshot returns the version-0 snapshot used as diff baseline.
func (s *Service) GetSourceSnapshot(ctx context.Context, userID, generatedResumeID string) (Version, error) {
	if _, err := s.GetGenerated(ctx, userID, generatedResumeID); err != nil {
		return Version{}, err
	}
	return s.Generated.GetVersion(ctx, generatedResumeID, 0)
}

func validateDocument(doc Document) error {
	if strings.TrimSpace(doc.Header.Name) == "" {
		return fmt.Errorf("%w: header.name is required", ErrInvalidInput)
	}
	if len(doc.Experiences) == 0 {
		return fmt.Errorf("%w: at least one experience is required", ErrInvalidInput)
	}
	return nil
}
