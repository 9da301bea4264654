package resumes

import "context"

// Repo defines persistence operations for source resumes.
type Repo interface {
	Create(ctx context.Context, resume Resume) error
	GetByID(ctx context.Context, userID, resumeID string) (Resume, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Resume, error)
}

// GeneratedRepo defines persistence operations for generated resumes. Create
// stores the resume together with its version-0 source snapshot atomically.
type GeneratedRepo interface {
	Create(ctx context.Context, resume GeneratedResume, sourceSnapshot Version) error
	GetByID(ctx context.Context, userID, generatedResumeID string) (GeneratedResume, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]GeneratedResume, error)
	GetVersion(ctx context.Context, generatedResumeID string, version int) (Version, error)
}
