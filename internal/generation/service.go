package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cvadapt-backend/internal/credits"
	"cvadapt-backend/internal/jobpostings"
	"cvadapt-backend/internal/queue"
	"cvadapt-backend/internal/resumes"
	"cvadapt-backend/internal/shared/telemetry"
	"cvadapt-backend/internal/slots"
)

// maxOffersPerTask bounds a multi-offer request.
const maxOffersPerTask = 5

// CreateRequest describes a new generation task.
type CreateRequest struct {
	ResumeID string
	Mode     string
	Offers   []jobpostings.Source
}

// TaskStatus is the full task view returned by the status endpoint.
type TaskStatus struct {
	Task   Task          `json:"task"`
	Offers []OfferStatus `json:"offers"`
}

// OfferStatus pairs an offer with its subtasks.
type OfferStatus struct {
	Offer    Offer     `json:"offer"`
	Subtasks []Subtask `json:"subtasks"`
}

// Service is the API-side entry point: it charges credits, creates the task
// rows and hands the work to the queue. The orchestrator picks it up on the
// worker side.
type Service struct {
	Repo       Repo
	Resumes    resumes.Repo
	Postings   *jobpostings.Service
	Ledger     credits.Ledger
	Queue      queue.Client
	Slots      *slots.Registry
	Refunder   *Refunder
	CreditCost int
}

// Create validates the request, stages every posting, charges the user and
// enqueues the task. Posting extraction runs inside the pipeline so a dead
// URL fails one offer later, not the whole submission here. Credits are
// consumed before the rows exist so a queue failure grants them straight
// back.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (Task, error) {
	if req.ResumeID == "" {
		return Task{}, fmt.Errorf("%w: resumeId is required", ErrInvalidInput)
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeMulti
	}
	if mode != ModeSingle && mode != ModeMulti {
		return Task{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, req.Mode)
	}
	if len(req.Offers) == 0 {
		return Task{}, fmt.Errorf("%w: at least one offer is required", ErrInvalidInput)
	}
	if mode == ModeSingle && len(req.Offers) != 1 {
		return Task{}, fmt.Errorf("%w: single mode takes exactly one offer", ErrInvalidInput)
	}
	if len(req.Offers) > maxOffersPerTask {
		return Task{}, fmt.Errorf("%w: at most %d offers per task", ErrInvalidInput, maxOffersPerTask)
	}

	if _, err := s.Resumes.GetByID(ctx, userID, req.ResumeID); err != nil {
		return Task{}, err
	}

	// One running task per user. The registry only sees tasks of this
	// process, the database check in the worker is the real gate.
	if s.Slots != nil {
		if active, ok := s.Slots.Active(userID); ok {
			return Task{}, fmt.Errorf("%w: task %s still running", slots.ErrTaskInProgress, active)
		}
	}

	postings := make([]jobpostings.JobPosting, 0, len(req.Offers))
	for i, src := range req.Offers {
		posting, _, err := s.Postings.Stage(ctx, userID, src)
		if err != nil {
			return Task{}, fmt.Errorf("offer %d: %w", i, err)
		}
		postings = append(postings, posting)
	}

	now := time.Now().UTC()
	task := Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		ResumeID:    req.ResumeID,
		Mode:        mode,
		Status:      TaskPending,
		CreditCost:  s.CreditCost,
		TotalOffers: len(postings),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	offers := make([]Offer, len(postings))
	for i, posting := range postings {
		offers[i] = Offer{
			ID:           uuid.NewString(),
			TaskID:       task.ID,
			OfferIndex:   i,
			JobPostingID: posting.ID,
			JobTitle:     posting.Title,
			Status:       OfferPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	total := s.CreditCost * len(offers)
	if err := s.Ledger.Consume(ctx, userID, total, credits.ReasonGeneration, map[string]any{"taskId": task.ID, "offers": len(offers)}); err != nil {
		return Task{}, err
	}

	if err := s.Repo.CreateTask(ctx, task, offers); err != nil {
		s.grantBack(ctx, userID, total, task.ID, "task insert failed")
		return Task{}, err
	}

	if err := s.enqueue(ctx, task.ID, ""); err != nil {
		s.grantBack(ctx, userID, total, task.ID, "enqueue failed")
		if uerr := s.Repo.UpdateTaskStatus(ctx, task.ID, TaskFailed, "enqueue failed"); uerr != nil {
			telemetry.Error("generation.task_status_update_failed", map[string]any{"task": task.ID, "error": uerr.Error()})
		}
		return Task{}, err
	}

	telemetry.Info("generation.task_created", map[string]any{"task": task.ID, "mode": mode, "offers": len(offers), "credits": total})
	return task, nil
}

func (s *Service) enqueue(ctx context.Context, taskID, offerID string) error {
	return s.Queue.Send(ctx, queue.Message{
		TaskID:     taskID,
		OfferID:    offerID,
		RequestID:  uuid.NewString(),
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    queue.CurrentVersion,
	})
}

func (s *Service) grantBack(ctx context.Context, userID string, amount int, taskID, reason string) {
	if err := s.Ledger.Grant(ctx, userID, amount, credits.ReasonRefund, map[string]any{"taskId": taskID, "reason": reason}); err != nil {
		telemetry.Error("generation.grant_back_failed", map[string]any{"task": taskID, "error": err.Error()})
	}
}

// Get returns one task.
func (s *Service) Get(ctx context.Context, userID, taskID string) (Task, error) {
	return s.Repo.GetTaskForUser(ctx, userID, taskID)
}

// List returns the user's tasks, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Task, error) {
	return s.Repo.ListTasksByUser(ctx, userID, limit, offset)
}

// Status returns the task with all offers and their subtasks.
func (s *Service) Status(ctx context.Context, userID, taskID string) (TaskStatus, error) {
	task, err := s.Repo.GetTaskForUser(ctx, userID, taskID)
	if err != nil {
		return TaskStatus{}, err
	}
	offers, err := s.Repo.ListOffers(ctx, task.ID)
	if err != nil {
		return TaskStatus{}, err
	}
	status := TaskStatus{Task: task, Offers: make([]OfferStatus, 0, len(offers))}
	for _, offer := range offers {
		subtasks, err := s.Repo.ListSubtasks(ctx, offer.ID)
		if err != nil {
			return TaskStatus{}, err
		}
		status.Offers = append(status.Offers, OfferStatus{Offer: offer, Subtasks: subtasks})
	}
	return status, nil
}

// Cancel stops a task. A task running in this process gets its context
// cancelled and the orchestrator finishes the bookkeeping. A task that
// never started is settled here: offers swept to cancelled with refunds.
func (s *Service) Cancel(ctx context.Context, userID, taskID string) (Task, error) {
	task, err := s.Repo.GetTaskForUser(ctx, userID, taskID)
	if err != nil {
		return Task{}, err
	}
	switch task.Status {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return Task{}, fmt.Errorf("%w: task already %s", ErrInvalidInput, task.Status)
	}

	if s.Slots != nil && s.Slots.Cancel(task.ID) {
		telemetry.Info("generation.cancel_signalled", map[string]any{"task": task.ID})
		return s.Repo.GetTaskForUser(ctx, userID, taskID)
	}

	offers, err := s.Repo.ListOffers(ctx, task.ID)
	if err != nil {
		return Task{}, err
	}
	for _, offer := range offers {
		if !offerActive(offer.Status) {
			continue
		}
		if err := s.Repo.UpdateOfferStatus(ctx, offer.ID, OfferCancelled, "cancelled"); err != nil {
			telemetry.Error("generation.offer_status_update_failed", map[string]any{"offer": offer.ID, "error": err.Error()})
			continue
		}
		if s.Refunder != nil {
			if _, err := s.Refunder.RefundOffer(ctx, task, offer); err != nil {
				telemetry.Error("generation.refund_failed", map[string]any{"offer": offer.ID, "error": err.Error()})
			}
		}
	}
	if err := s.Repo.UpdateTaskStatus(ctx, task.ID, TaskCancelled, "cancelled by user"); err != nil {
		return Task{}, err
	}
	return s.Repo.GetTaskForUser(ctx, userID, taskID)
}

// RetryOffer re-runs one failed offer. The original failure refunded its
// credits, so a retry charges them again before re-enqueueing.
func (s *Service) RetryOffer(ctx context.Context, userID, taskID, offerID string) error {
	task, err := s.Repo.GetTaskForUser(ctx, userID, taskID)
	if err != nil {
		return err
	}
	offer, err := s.Repo.GetOffer(ctx, offerID)
	if err != nil {
		return err
	}
	if offer.TaskID != task.ID {
		return ErrOfferNotFound
	}
	if offer.Status != OfferFailed && offer.Status != OfferCancelled {
		return fmt.Errorf("%w: offer is %s", ErrInvalidInput, offer.Status)
	}

	if err := s.Ledger.Consume(ctx, userID, task.CreditCost, credits.ReasonGeneration, map[string]any{"taskId": task.ID, "offerId": offer.ID, "retry": true}); err != nil {
		return err
	}
	if err := s.Repo.ResetOfferForRetry(ctx, offer.ID); err != nil {
		s.grantBack(ctx, userID, task.CreditCost, task.ID, "retry reset failed")
		return err
	}
	if err := s.enqueue(ctx, task.ID, offer.ID); err != nil {
		s.grantBack(ctx, userID, task.CreditCost, task.ID, "retry enqueue failed")
		return err
	}
	return nil
}

// IsNotFound reports whether err is one of the lookup misses.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrOfferNotFound)
}
