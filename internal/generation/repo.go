package generation

import "context"

// Repo persists generation tasks, their offers and subtasks.
type Repo interface {
	// CreateTask inserts the task and all its offers in one transaction.
	CreateTask(ctx context.Context, task Task, offers []Offer) error
	GetTask(ctx context.Context, taskID string) (Task, error)
	GetTaskForUser(ctx context.Context, userID, taskID string) (Task, error)
	ListTasksByUser(ctx context.Context, userID string, limit, offset int) ([]Task, error)
	UpdateTaskStatus(ctx context.Context, taskID, status, errMsg string) error
	// IncrementCompletedOffers bumps the completed counter after an offer
	// finishes successfully.
	IncrementCompletedOffers(ctx context.Context, taskID string) error

	GetOffer(ctx context.Context, offerID string) (Offer, error)
	ListOffers(ctx context.Context, taskID string) ([]Offer, error)
	UpdateOfferStatus(ctx context.Context, offerID, status, errMsg string) error
	// SetOfferJobTitle records the posting title once extraction produced it.
	SetOfferJobTitle(ctx context.Context, offerID, title string) error
	// SetOfferResult records the generated resume id and per-phase results
	// once an offer completes.
	SetOfferResult(ctx context.Context, offerID, generatedResumeID string, batchResults []byte) error
	// MarkOfferRefunded flips the offer refund flag and adds amount to the
	// task refund counter atomically. Returns false when the offer was
	// already refunded.
	MarkOfferRefunded(ctx context.Context, offerID, taskID string, amount int) (bool, error)
	// ResetOfferForRetry puts a terminal offer back to pending and clears
	// the refund flag so a later failure can refund the retry charge.
	ResetOfferForRetry(ctx context.Context, offerID string) error

	CreateSubtask(ctx context.Context, subtask Subtask) error
	UpdateSubtask(ctx context.Context, subtask Subtask) error
	IncrementSubtaskRetry(ctx context.Context, subtaskID string) error
	ListSubtasks(ctx context.Context, offerID string) ([]Subtask, error)
}
