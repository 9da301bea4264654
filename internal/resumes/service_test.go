package resumes

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	return &Service{
		Repo:      NewMemoryRepo(),
		Generated: NewMemoryGeneratedRepo(),
	}
}

func validDocumentJSON() string {
	return `{
		"header": {"name": "Jane Doe", "current_title": "Backend Engineer"},
		"summary": {"headline": "Backend Engineer", "description": "8 years building services."},
		"skills": {"hard_skills": [{"name": "Go", "proficiency": "expert"}], "soft_skills": [], "tools": [], "methodologies": []},
		"experience": [{"title": "Engineer", "company": "Acme", "start_date": "2018-01", "end_date": "present"}]
	}`
}

func TestUploadParsesAndStoresDocument(t *testing.T) {
	svc := setupService(t)

	resume, err := svc.Upload(context.Background(), "user-1", "cv.json", strings.NewReader(validDocumentJSON()))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if resume.ID == "" {
		t.Fatalf("expected generated ID")
	}
	if resume.Content.Header.Name != "Jane Doe" {
		t.Fatalf("unexpected header name: %q", resume.Content.Header.Name)
	}

	got, err := svc.Get(context.Background(), "user-1", resume.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FileName != "cv.json" {
		t.Fatalf("unexpected file name: %q", got.FileName)
	}
}

func TestUploadRejectsDocumentWithoutExperiences(t *testing.T) {
	svc := setupService(t)

	body := `{"header": {"name": "Jane Doe"}, "experience": []}`
	_, err := svc.Upload(context.Background(), "user-1", "cv.json", strings.NewReader(body))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUploadRejectsMalformedJSON(t *testing.T) {
	svc := setupService(t)

	_, err := svc.Upload(context.Background(), "user-1", "cv.json", strings.NewReader("{not json"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc := setupService(t)

	resume, err := svc.Upload(context.Background(), "user-1", "cv.json", strings.NewReader(validDocumentJSON()))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if _, err := svc.Get(context.Background(), "user-2", resume.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestGetSourceSnapshotReturnsVersionZero(t *testing.T) {
	svc := setupService(t)

	source := Document{
		Header:      Header{Name: "Jane Doe", CurrentTitle: "Engineer"},
		Experiences: []Experience{{Title: "Engineer", Company: "Acme"}},
	}
	gen := GeneratedResume{
		ID:             "gen-1",
		UserID:         "user-1",
		SourceResumeID: "res-1",
		FileName:       "cv_adapted.json",
		Content:        source,
		CreatedAt:      time.Now().UTC(),
	}
	snapshot := Version{
		ID:        "ver-0",
		Version:   0,
		Content:   source,
		Label:     "source",
		CreatedAt: time.Now().UTC(),
	}
	if err := svc.Generated.Create(context.Background(), gen, snapshot); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.GetSourceSnapshot(context.Background(), "user-1", "gen-1")
	if err != nil {
		t.Fatalf("GetSourceSnapshot: %v", err)
	}
	if got.Version != 0 || got.Label != "source" {
		t.Fatalf("unexpected snapshot: version=%d label=%q", got.Version, got.Label)
	}
}
