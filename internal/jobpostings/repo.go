package jobpostings

import "context"

// Repo defines persistence operations for job postings.
type Repo interface {
	Create(ctx context.Context, posting JobPosting) error
	GetByID(ctx context.Context, postingID string) (JobPosting, error)
	FindBySourceHash(ctx context.Context, userID, sourceHash string) (JobPosting, error)
	// SetContent fills in the extracted content of a staged posting.
	SetContent(ctx context.Context, postingID, rawText string, content Content) error
}
