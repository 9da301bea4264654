package generation

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// CreateTask inserts the task row and one row per offer in one transaction.
func (r *PGRepo) CreateTask(ctx context.Context, task Task, offers []Offer) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertTask = `
INSERT INTO generation_tasks (id, user_id, resume_id, mode, status, credit_cost, credits_refunded, completed_offers, total_offers, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := tx.ExecContext(ctx, insertTask,
		task.ID,
		task.UserID,
		task.ResumeID,
		task.Mode,
		task.Status,
		task.CreditCost,
		task.CreditsRefunded,
		task.CompletedOffers,
		task.TotalOffers,
		task.CreatedAt,
		task.UpdatedAt,
	); err != nil {
		return err
	}

	const insertOffer = `
INSERT INTO generation_offers (id, task_id, offer_index, job_posting_id, job_title, status, credits_refunded, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, offer := range offers {
		if _, err := tx.ExecContext(ctx, insertOffer,
			offer.ID,
			offer.TaskID,
			offer.OfferIndex,
			offer.JobPostingID,
			offer.JobTitle,
			offer.Status,
			offer.CreditsRefunded,
			offer.CreatedAt,
			offer.UpdatedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const taskColumns = `id, user_id, resume_id, mode, status, credit_cost, credits_refunded, completed_offers, total_offers, COALESCE(error, ''), created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var task Task
	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.ResumeID,
		&task.Mode,
		&task.Status,
		&task.CreditCost,
		&task.CreditsRefunded,
		&task.CompletedOffers,
		&task.TotalOffers,
		&task.Error,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	return task, err
}

// GetTask returns a task regardless of owner. Worker-side use only.
func (r *PGRepo) GetTask(ctx context.Context, taskID string) (Task, error) {
	const query = `
SELECT ` + taskColumns + `
FROM generation_tasks
WHERE id = $1
LIMIT 1`
	task, err := scanTask(r.DB.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, err
	}
	return task, nil
}

// GetTaskForUser returns a task owned by userID. A task owned by someone
// else reads as not found.
func (r *PGRepo) GetTaskForUser(ctx context.Context, userID, taskID string) (Task, error) {
	task, err := r.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	if task.UserID != userID {
		return Task{}, ErrTaskNotFound
	}
	return task, nil
}

// ListTasksByUser lists tasks ordered newest-first.
func (r *PGRepo) ListTasksByUser(ctx context.Context, userID string, limit, offset int) ([]Task, error) {
	limit, offset = clampPage(limit, offset)
	const query = `
SELECT ` + taskColumns + `
FROM generation_tasks
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// UpdateTaskStatus sets the task status and optional error message.
func (r *PGRepo) UpdateTaskStatus(ctx context.Context, taskID, status, errMsg string) error {
	const query = `
UPDATE generation_tasks
SET status = $2, error = NULLIF($3, ''), updated_at = $4
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, taskID, status, errMsg, time.Now().UTC())
	if err != nil {
		return err
	}
	return requireRow(res, ErrTaskNotFound)
}

// IncrementCompletedOffers bumps the completed offer counter.
func (r *PGRepo) IncrementCompletedOffers(ctx context.Context, taskID string) error {
	const query = `
UPDATE generation_tasks
SET completed_offers = completed_offers + 1, updated_at = $2
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, taskID, time.Now().UTC())
	if err != nil {
		return err
	}
	return requireRow(res, ErrTaskNotFound)
}

const offerColumns = `id, task_id, offer_index, job_posting_id, COALESCE(job_title, ''), status, credits_refunded, COALESCE(generated_resume_id, ''), COALESCE(batch_results, 'null'), COALESCE(error, ''), created_at, updated_at`

func scanOffer(row interface{ Scan(...any) error }) (Offer, error) {
	var offer Offer
	var batchResults []byte
	err := row.Scan(
		&offer.ID,
		&offer.TaskID,
		&offer.OfferIndex,
		&offer.JobPostingID,
		&offer.JobTitle,
		&offer.Status,
		&offer.CreditsRefunded,
		&offer.GeneratedResumeID,
		&batchResults,
		&offer.Error,
		&offer.CreatedAt,
		&offer.UpdatedAt,
	)
	if err != nil {
		return Offer{}, err
	}
	if string(batchResults) != "null" {
		offer.BatchResults = batchResults
	}
	return offer, nil
}

// GetOffer returns one offer by id.
func (r *PGRepo) GetOffer(ctx context.Context, offerID string) (Offer, error) {
	const query = `
SELECT ` + offerColumns + `
FROM generation_offers
WHERE id = $1
LIMIT 1`
	offer, err := scanOffer(r.DB.QueryRowContext(ctx, query, offerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Offer{}, ErrOfferNotFound
		}
		return Offer{}, err
	}
	return offer, nil
}

// ListOffers returns the offers of a task ordered by offer index.
func (r *PGRepo) ListOffers(ctx context.Context, taskID string) ([]Offer, error) {
	const query = `
SELECT ` + offerColumns + `
FROM generation_offers
WHERE task_id = $1
ORDER BY offer_index`
	rows, err := r.DB.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, offer)
	}
	return out, rows.Err()
}

// UpdateOfferStatus sets the offer status and optional error message.
func (r *PGRepo) UpdateOfferStatus(ctx context.Context, offerID, status, errMsg string) error {
	const query = `
UPDATE generation_offers
SET status = $2, error = NULLIF($3, ''), updated_at = $4
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, offerID, status, errMsg, time.Now().UTC())
	if err != nil {
		return err
	}
	return requireRow(res, ErrOfferNotFound)
}

// SetOfferJobTitle records the posting title once extraction produced it.
func (r *PGRepo) SetOfferJobTitle(ctx context.Context, offerID, title string) error {
	const query = `
UPDATE generation_offers
SET job_title = $2, updated_at = $3
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, offerID, title, time.Now().UTC())
	if err != nil {
		return err
	}
	return requireRow(res, ErrOfferNotFound)
}

// SetOfferResult stores the generated resume id and the per-phase results.
func (r *PGRepo) SetOfferResult(ctx context.Context, offerID, generatedResumeID string, batchResults []byte) error {
	const query = `
UPDATE generation_offers
SET generated_resume_id = $2, batch_results = $3, updated_at = $4
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, offerID, generatedResumeID, batchResults, time.Now().UTC())
	if err != nil {
		return err
	}
	return requireRow(res, ErrOfferNotFound)
}

// MarkOfferRefunded flips the refund flag and bumps the task counter in one
// transaction. The conditional update makes the refund idempotent under
// concurrent delivery.
func (r *PGRepo) MarkOfferRefunded(ctx context.Context, offerID, taskID string, amount int) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	const flagOffer = `
UPDATE generation_offers
SET credits_refunded = TRUE, updated_at = $2
WHERE id = $1 AND credits_refunded = FALSE`
	res, err := tx.ExecContext(ctx, flagOffer, offerID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	const bumpTask = `
UPDATE generation_tasks
SET credits_refunded = credits_refunded + $2, updated_at = $3
WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bumpTask, taskID, amount, time.Now().UTC()); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// ResetOfferForRetry rearms a terminal offer for another run.
func (r *PGRepo) ResetOfferForRetry(ctx context.Context, offerID string) error {
	const query = `
UPDATE generation_offers
SET status = $2, credits_refunded = FALSE, error = NULL, updated_at = $3
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, offerID, OfferPending, time.Now().UTC())
	if err != nil {
		return err
	}
	return requireRow(res, ErrOfferNotFound)
}

// CreateSubtask inserts one subtask row.
func (r *PGRepo) CreateSubtask(ctx context.Context, subtask Subtask) error {
	const query = `
INSERT INTO generation_subtasks (id, offer_id, phase, item_index, status, retry_count, output, model_used, prompt_tokens, cached_tokens, completion_tokens, estimated_cost, duration_ms, error, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, ''), $15)`
	_, err := r.DB.ExecContext(ctx, query,
		subtask.ID,
		subtask.OfferID,
		subtask.Phase,
		subtask.ItemIndex,
		subtask.Status,
		subtask.RetryCount,
		nullBytes(subtask.Output),
		nullString(subtask.ModelUsed),
		subtask.PromptTokens,
		subtask.CachedTokens,
		subtask.CompletionTokens,
		subtask.EstimatedCost,
		subtask.DurationMs,
		subtask.Error,
		subtask.CreatedAt,
	)
	return err
}

// UpdateSubtask rewrites the mutable subtask fields.
func (r *PGRepo) UpdateSubtask(ctx context.Context, subtask Subtask) error {
	const query = `
UPDATE generation_subtasks
SET status = $2, retry_count = $3, output = $4, model_used = $5, prompt_tokens = $6, cached_tokens = $7, completion_tokens = $8, estimated_cost = $9, duration_ms = $10, error = NULLIF($11, '')
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query,
		subtask.ID,
		subtask.Status,
		subtask.RetryCount,
		nullBytes(subtask.Output),
		nullString(subtask.ModelUsed),
		subtask.PromptTokens,
		subtask.CachedTokens,
		subtask.CompletionTokens,
		subtask.EstimatedCost,
		subtask.DurationMs,
		subtask.Error,
	)
	if err != nil {
		return err
	}
	return requireRow(res, ErrOfferNotFound)
}

// IncrementSubtaskRetry bumps a subtask retry counter.
func (r *PGRepo) IncrementSubtaskRetry(ctx context.Context, subtaskID string) error {
	const query = `
UPDATE generation_subtasks
SET retry_count = retry_count + 1
WHERE id = $1`
	_, err := r.DB.ExecContext(ctx, query, subtaskID)
	return err
}

// ListSubtasks returns the subtasks of an offer ordered by creation.
func (r *PGRepo) ListSubtasks(ctx context.Context, offerID string) ([]Subtask, error) {
	const query = `
SELECT id, offer_id, phase, item_index, status, retry_count, COALESCE(output, 'null'), COALESCE(model_used, ''), prompt_tokens, cached_tokens, completion_tokens, estimated_cost, duration_ms, COALESCE(error, ''), created_at
FROM generation_subtasks
WHERE offer_id = $1
ORDER BY created_at`
	rows, err := r.DB.QueryContext(ctx, query, offerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subtask
	for rows.Next() {
		var st Subtask
		var output []byte
		if err := rows.Scan(
			&st.ID,
			&st.OfferID,
			&st.Phase,
			&st.ItemIndex,
			&st.Status,
			&st.RetryCount,
			&output,
			&st.ModelUsed,
			&st.PromptTokens,
			&st.CachedTokens,
			&st.CompletionTokens,
			&st.EstimatedCost,
			&st.DurationMs,
			&st.Error,
			&st.CreatedAt,
		); err != nil {
			return nil, err
		}
		if string(output) != "null" {
			st.Output = output
		}
		out = append(out, st)
	}
	return out, rows.Err()
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

func requireRow(res sql.Result, missing error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return missing
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ Repo = (*PGRepo)(nil)
