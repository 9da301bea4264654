package jobpostings

import (
	"context"
	"sync"
)

// MemoryRepo stores job postings in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]JobPosting
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]JobPosting)}
}

// Create stores the posting.
func (r *MemoryRepo) Create(ctx context.Context, posting JobPosting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[posting.ID] = posting
	return nil
}

// GetByID returns a posting by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, postingID string) (JobPosting, error) {
	if err := ctx.Err(); err != nil {
		return JobPosting{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	posting, ok := r.byID[postingID]
	if !ok {
		return JobPosting{}, ErrNotFound
	}
	return posting, nil
}

// FindBySourceHash returns the newest posting with the given hash for a user.
func (r *MemoryRepo) FindBySourceHash(ctx context.Context, userID, sourceHash string) (JobPosting, error) {
	if err := ctx.Err(); err != nil {
		return JobPosting{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found JobPosting
	var ok bool
	for _, posting := range r.byID {
		if posting.UserID != userID || posting.SourceHash != sourceHash {
			continue
		}
		if !ok || posting.CreatedAt.After(found.CreatedAt) {
			found = posting
			ok = true
		}
	}
	if !ok {
		return JobPosting{}, ErrNotFound
	}
	return found, nil
}

// SetContent fills in the extracted content of a staged posting.
func (r *MemoryRepo) SetContent(ctx context.Context, postingID, rawText string, content Content) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	posting, ok := r.byID[postingID]
	if !ok {
		return ErrNotFound
	}
	posting.Title = content.Title
	posting.RawText = rawText
	posting.Content = content
	r.byID[postingID] = posting
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
