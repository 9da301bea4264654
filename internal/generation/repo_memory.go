package generation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo used by tests.
type MemoryRepo struct {
	mu       sync.Mutex
	tasks    map[string]Task
	offers   map[string]Offer
	subtasks map[string]Subtask
}

// NewMemoryRepo returns an empty in-memory repo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		tasks:    make(map[string]Task),
		offers:   make(map[string]Offer),
		subtasks: make(map[string]Subtask),
	}
}

func (r *MemoryRepo) CreateTask(_ context.Context, task Task, offers []Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = task
	for _, offer := range offers {
		r.offers[offer.ID] = offer
	}
	return nil
}

func (r *MemoryRepo) GetTask(_ context.Context, taskID string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return task, nil
}

func (r *MemoryRepo) GetTaskForUser(ctx context.Context, userID, taskID string) (Task, error) {
	task, err := r.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	if task.UserID != userID {
		return Task{}, ErrTaskNotFound
	}
	return task, nil
}

func (r *MemoryRepo) ListTasksByUser(_ context.Context, userID string, limit, offset int) ([]Task, error) {
	limit, offset = clampPage(limit, offset)
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Task
	for _, task := range r.tasks {
		if task.UserID == userID {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) UpdateTaskStatus(_ context.Context, taskID, status, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	task.Status = status
	task.Error = errMsg
	task.UpdatedAt = time.Now().UTC()
	r.tasks[taskID] = task
	return nil
}

func (r *MemoryRepo) IncrementCompletedOffers(_ context.Context, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	task.CompletedOffers++
	task.UpdatedAt = time.Now().UTC()
	r.tasks[taskID] = task
	return nil
}

func (r *MemoryRepo) GetOffer(_ context.Context, offerID string) (Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer, ok := r.offers[offerID]
	if !ok {
		return Offer{}, ErrOfferNotFound
	}
	return offer, nil
}

func (r *MemoryRepo) ListOffers(_ context.Context, taskID string) ([]Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Offer
	for _, offer := range r.offers {
		if offer.TaskID == taskID {
			out = append(out, offer)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OfferIndex < out[j].OfferIndex })
	return out, nil
}

func (r *MemoryRepo) UpdateOfferStatus(_ context.Context, offerID, status, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer, ok := r.offers[offerID]
	if !ok {
		return ErrOfferNotFound
	}
	offer.Status = status
	offer.Error = errMsg
	offer.UpdatedAt = time.Now().UTC()
	r.offers[offerID] = offer
	return nil
}

func (r *MemoryRepo) SetOfferJobTitle(_ context.Context, offerID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer, ok := r.offers[offerID]
	if !ok {
		return ErrOfferNotFound
	}
	offer.JobTitle = title
	offer.UpdatedAt = time.Now().UTC()
	r.offers[offerID] = offer
	return nil
}

func (r *MemoryRepo) SetOfferResult(_ context.Context, offerID, generatedResumeID string, batchResults []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer, ok := r.offers[offerID]
	if !ok {
		return ErrOfferNotFound
	}
	offer.GeneratedResumeID = generatedResumeID
	offer.BatchResults = batchResults
	offer.UpdatedAt = time.Now().UTC()
	r.offers[offerID] = offer
	return nil
}

func (r *MemoryRepo) MarkOfferRefunded(_ context.Context, offerID, taskID string, amount int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer, ok := r.offers[offerID]
	if !ok {
		return false, ErrOfferNotFound
	}
	if offer.CreditsRefunded {
		return false, nil
	}
	offer.CreditsRefunded = true
	r.offers[offerID] = offer
	task := r.tasks[taskID]
	task.CreditsRefunded += amount
	r.tasks[taskID] = task
	return true, nil
}

func (r *MemoryRepo) ResetOfferForRetry(_ context.Context, offerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer, ok := r.offers[offerID]
	if !ok {
		return ErrOfferNotFound
	}
	offer.Status = OfferPending
	offer.CreditsRefunded = false
	offer.Error = ""
	offer.UpdatedAt = time.Now().UTC()
	r.offers[offerID] = offer
	return nil
}

func (r *MemoryRepo) CreateSubtask(_ context.Context, subtask Subtask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subtasks[subtask.ID] = subtask
	return nil
}

func (r *MemoryRepo) UpdateSubtask(_ context.Context, subtask Subtask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.subtasks[subtask.ID]
	if !ok {
		return ErrOfferNotFound
	}
	subtask.CreatedAt = existing.CreatedAt
	r.subtasks[subtask.ID] = subtask
	return nil
}

func (r *MemoryRepo) IncrementSubtaskRetry(_ context.Context, subtaskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	subtask, ok := r.subtasks[subtaskID]
	if !ok {
		return ErrOfferNotFound
	}
	subtask.RetryCount++
	r.subtasks[subtaskID] = subtask
	return nil
}

func (r *MemoryRepo) ListSubtasks(_ context.Context, offerID string) ([]Subtask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Subtask
	for _, subtask := range r.subtasks {
		if subtask.OfferID == offerID {
			out = append(out, subtask)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ItemIndex < out[j].ItemIndex
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
