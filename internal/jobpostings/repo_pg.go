package jobpostings

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

// Create inserts a job posting.
func (r *PGRepo) Create(ctx context.Context, posting JobPosting) error {
	const query = `
INSERT INTO job_postings (id, user_id, source_url, source_hash, title, raw_text, content, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	content, err := json.Marshal(posting.Content)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		posting.ID,
		posting.UserID,
		nullString(posting.SourceURL),
		posting.SourceHash,
		posting.Title,
		posting.RawText,
		content,
		posting.CreatedAt,
	)
	return err
}

// GetByID returns a job posting by ID.
func (r *PGRepo) GetByID(ctx context.Context, postingID string) (JobPosting, error) {
	const query = `
SELECT id, user_id, source_url, source_hash, title, raw_text, content, created_at
FROM job_postings
WHERE id = $1
LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, postingID))
}

// FindBySourceHash returns the newest posting a user extracted from the same
// source, if any.
func (r *PGRepo) FindBySourceHash(ctx context.Context, userID, sourceHash string) (JobPosting, error) {
	const query = `
SELECT id, user_id, source_url, source_hash, title, raw_text, content, created_at
FROM job_postings
WHERE user_id = $1 AND source_hash = $2
ORDER BY created_at DESC
LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, userID, sourceHash))
}

// SetContent fills in the extracted content of a staged posting.
func (r *PGRepo) SetContent(ctx context.Context, postingID, rawText string, content Content) error {
	const query = `
UPDATE job_postings
SET title = $2, raw_text = $3, content = $4
WHERE id = $1`
	blob, err := json.Marshal(content)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, postingID, content.Title, rawText, blob)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) scanOne(row *sql.Row) (JobPosting, error) {
	var posting JobPosting
	var sourceURL sql.NullString
	var content []byte
	err := row.Scan(
		&posting.ID,
		&posting.UserID,
		&sourceURL,
		&posting.SourceHash,
		&posting.Title,
		&posting.RawText,
		&content,
		&posting.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return JobPosting{}, ErrNotFound
		}
		return JobPosting{}, err
	}
	posting.SourceURL = sourceURL.String
	if err := json.Unmarshal(content, &posting.Content); err != nil {
		return JobPosting{}, err
	}
	return posting, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Repo = (*PGRepo)(nil)
