package resumes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a source resume.
func (r *PGRepo) Create(ctx context.Context, resume Resume) error {
	const query = `
INSERT INTO resumes (id, user_id, file_name, content, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	content, err := marshalJSONB(resume.Content)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		resume.ID,
		resume.UserID,
		resume.FileName,
		content,
		resume.CreatedAt,
		resume.UpdatedAt,
	)
	return err
}

// GetByID returns a resume by ID for a user.
func (r *PGRepo) GetByID(ctx context.Context, userID, resumeID string) (Resume, error) {
	const query = `
SELECT id, user_id, file_name, content, created_at, updated_at
FROM resumes
WHERE id = $1
LIMIT 1`
	var resume Resume
	var content []byte
	err := r.DB.QueryRowContext(ctx, query, resumeID).Scan(
		&resume.ID,
		&resume.UserID,
		&resume.FileName,
		&content,
		&resume.CreatedAt,
		&resume.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Resume{}, ErrNotFound
		}
		return Resume{}, err
	}
	if resume.UserID != userID {
		return Resume{}, ErrForbidden
	}
	if err := json.Unmarshal(content, &resume.Content); err != nil {
		return Resume{}, err
	}
	return resume, nil
}

// ListByUser lists resumes ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Resume, error) {
	limit, offset = clampPage(limit, offset)
	const query = `
SELECT id, user_id, file_name, content, created_at, updated_at
FROM resumes
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Resume
	for rows.Next() {
		var resume Resume
		var content []byte
		if err := rows.Scan(
			&resume.ID,
			&resume.UserID,
			&resume.FileName,
			&content,
			&resume.CreatedAt,
			&resume.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(content, &resume.Content); err != nil {
			return nil, err
		}
		out = append(out, resume)
	}
	return out, rows.Err()
}

// PGGeneratedRepo implements GeneratedRepo using Postgres.
type PGGeneratedRepo struct {
	DB *sql.DB
}

// Create inserts a generated resume and its version-0 snapshot in one
// transaction.
func (r *PGGeneratedRepo) Create(ctx context.Context, resume GeneratedResume, sourceSnapshot Version) error {
	content, err := marshalJSONB(resume.Content)
	if err != nil {
		return err
	}
	mods, err := marshalJSONBArray(resume.Modifications)
	if err != nil {
		return err
	}
	snapshot, err := marshalJSONB(sourceSnapshot.Content)
	if err != nil {
		return err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertResume = `
INSERT INTO generated_resumes (id, user_id, source_resume_id, offer_id, file_name, content, modifications, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.ExecContext(ctx, insertResume,
		resume.ID,
		resume.UserID,
		resume.SourceResumeID,
		nullString(resume.OfferID),
		resume.FileName,
		content,
		mods,
		resume.CreatedAt,
	); err != nil {
		return err
	}

	const insertVersion = `
INSERT INTO generated_resume_versions (id, generated_resume_id, version, content, label, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, insertVersion,
		sourceSnapshot.ID,
		resume.ID,
		sourceSnapshot.Version,
		snapshot,
		sourceSnapshot.Label,
		sourceSnapshot.CreatedAt,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID returns a generated resume by ID for a user.
func (r *PGGeneratedRepo) GetByID(ctx context.Context, userID, generatedResumeID string) (GeneratedResume, error) {
	const query = `
SELECT id, user_id, source_resume_id, offer_id, file_name, content, modifications, created_at
FROM generated_resumes
WHERE id = $1
LIMIT 1`
	var resume GeneratedResume
	var offerID sql.NullString
	var content, mods []byte
	err := r.DB.QueryRowContext(ctx, query, generatedResumeID).Scan(
		&resume.ID,
		&resume.UserID,
		&resume.SourceResumeID,
		&offerID,
		&resume.FileName,
		&content,
		&mods,
		&resume.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return GeneratedResume{}, ErrNotFound
		}
		return GeneratedResume{}, err
	}
	if resume.UserID != userID {
		return GeneratedResume{}, ErrForbidden
	}
	resume.OfferID = offerID.String
	if err := json.Unmarshal(content, &resume.Content); err != nil {
		return GeneratedResume{}, err
	}
	if len(mods) > 0 {
		if err := json.Unmarshal(mods, &resume.Modifications); err != nil {
			return GeneratedResume{}, err
		}
	}
	return resume, nil
}

// ListByUser lists generated resumes ordered newest-first.
func (r *PGGeneratedRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]GeneratedResume, error) {
	limit, offset = clampPage(limit, offset)
	const query = `
SELECT id, user_id, source_resume_id, offer_id, file_name, content, modifications, created_at
FROM generated_resumes
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GeneratedResume
	for rows.Next() {
		var resume GeneratedResume
		var offerID sql.NullString
		var content, mods []byte
		if err := rows.Scan(
			&resume.ID,
			&resume.UserID,
			&resume.SourceResumeID,
			&offerID,
			&resume.FileName,
			&content,
			&mods,
			&resume.CreatedAt,
		); err != nil {
			return nil, err
		}
		resume.OfferID = offerID.String
		if err := json.Unmarshal(content, &resume.Content); err != nil {
			return nil, err
		}
		if len(mods) > 0 {
			if err := json.Unmarshal(mods, &resume.Modifications); err != nil {
				return nil, err
			}
		}
		out = append(out, resume)
	}
	return out, rows.Err()
}

// GetVersion returns one content snapshot of a generated resume.
func (r *PGGeneratedRepo) GetVersion(ctx context.Context, generatedResumeID string, version int) (Version, error) {
	const query = `
SELECT id, generated_resume_id, version, content, label, created_at
FROM generated_resume_versions
WHERE generated_resume_id = $1 AND version = $2
LIMIT 1`
	var v Version
	var content []byte
	err := r.DB.QueryRowContext(ctx, query, generatedResumeID, version).Scan(
		&v.ID,
		&v.GeneratedResumeID,
		&v.Version,
		&content,
		&v.Label,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Version{}, ErrNotFound
		}
		return Version{}, err
	}
	if err := json.Unmarshal(content, &v.Content); err != nil {
		return Version{}, err
	}
	return v, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func marshalJSONB(value any) ([]byte, error) {
	return json.Marshal(value)
}

func marshalJSONBArray(value any) ([]byte, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(payload) == "null" {
		return []byte("[]"), nil
	}
	return payload, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var (
	_ Repo          = (*PGRepo)(nil)
	_ GeneratedRepo = (*PGGeneratedRepo)(nil)
)
