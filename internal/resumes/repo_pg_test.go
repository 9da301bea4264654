package resumes

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGGeneratedRepoCreateWritesResumeAndSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGGeneratedRepo{DB: db}
	now := time.Now().UTC()
	resume := GeneratedResume{
		ID:             "gen-1",
		UserID:         "user-1",
		SourceResumeID: "res-1",
		OfferID:        "offer-1",
		FileName:       "cv_adapted_backend-engineer_20240101000000_ab12.json",
		Content: Document{
			Header:      Header{Name: "Jane Doe", CurrentTitle: "Backend Engineer"},
			Experiences: []Experience{{Title: "Engineer", Company: "Acme"}},
		},
		Modifications: []Modification{
			{Section: "summary", ChangeType: "rewritten", Reason: "aligned with posting"},
		},
		CreatedAt: now,
	}
	snapshot := Version{
		ID:        "ver-0",
		Version:   0,
		Content:   resume.Content,
		Label:     "source",
		CreatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO generated_resumes").
		WithArgs(
			resume.ID,
			resume.UserID,
			resume.SourceResumeID,
			sqlmock.AnyArg(), // offer_id
			resume.FileName,
			sqlmock.AnyArg(), // content
			sqlmock.AnyArg(), // modifications
			resume.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO generated_resume_versions").
		WithArgs(
			snapshot.ID,
			resume.ID,
			snapshot.Version,
			sqlmock.AnyArg(), // content
			snapshot.Label,
			snapshot.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), resume, snapshot); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDReturnsForbiddenForOtherUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "file_name", "content", "created_at", "updated_at"}).
		AddRow("res-1", "owner", "cv.json", []byte(`{"header":{"name":"Jane","current_title":""}}`), now, now)
	mock.ExpectQuery("SELECT id, user_id, file_name").
		WithArgs("res-1").
		WillReturnRows(rows)

	if _, err := repo.GetByID(context.Background(), "intruder", "res-1"); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
