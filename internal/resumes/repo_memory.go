package resumes

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores resumes in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Resume
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Resume)}
}

// Create stores the resume.
func (r *MemoryRepo) Create(ctx context.Context, resume Resume) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[resume.ID] = resume
	return nil
}

// GetByID returns a resume by ID for a user.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, resumeID string) (Resume, error) {
	if err := ctx.Err(); err != nil {
		return Resume{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	resume, ok := r.byID[resumeID]
	if !ok {
		return Resume{}, ErrNotFound
	}
	if resume.UserID != userID {
		return Resume{}, ErrForbidden
	}
	return resume, nil
}

// ListByUser lists resumes ordered newest-first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Resume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []Resume
	for _, resume := range r.byID {
		if resume.UserID == userID {
			all = append(all, resume)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// MemoryGeneratedRepo stores generated resumes in memory.
type MemoryGeneratedRepo struct {
	mu       sync.RWMutex
	byID     map[string]GeneratedResume
	versions map[string][]Version
}

// NewMemoryGeneratedRepo constructs a MemoryGeneratedRepo.
func NewMemoryGeneratedRepo() *MemoryGeneratedRepo {
	return &MemoryGeneratedRepo{
		byID:     make(map[string]GeneratedResume),
		versions: make(map[string][]Version),
	}
}

// Create stores the generated resume and its source snapshot.
func (r *MemoryGeneratedRepo) Create(ctx context.Context, resume GeneratedResume, sourceSnapshot Version) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[resume.ID] = resume
	sourceSnapshot.GeneratedResumeID = resume.ID
	r.versions[resume.ID] = append(r.versions[resume.ID], sourceSnapshot)
	return nil
}

// GetByID returns a generated resume by ID for a user.
func (r *MemoryGeneratedRepo) GetByID(ctx context.Context, userID, generatedResumeID string) (GeneratedResume, error) {
	if err := ctx.Err(); err != nil {
		return GeneratedResume{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	resume, ok := r.byID[generatedResumeID]
	if !ok {
		return GeneratedResume{}, ErrNotFound
	}
	if resume.UserID != userID {
		return GeneratedResume{}, ErrForbidden
	}
	return resume, nil
}

// ListByUser lists generated resumes ordered newest-first.
func (r *MemoryGeneratedRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]GeneratedResume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []GeneratedResume
	for _, resume := range r.byID {
		if resume.UserID == userID {
			all = append(all, resume)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// GetVersion returns one content snapshot of a generated resume.
func (r *MemoryGeneratedRepo) GetVersion(ctx context.Context, generatedResumeID string, version int) (Version, error) {
	if err := ctx.Err(); err != nil {
		return Version{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.versions[generatedResumeID] {
		if v.Version == version {
			return v, nil
		}
	}
	return Version{}, ErrNotFound
}

var (
	_ Repo          = (*MemoryRepo)(nil)
	_ GeneratedRepo = (*MemoryGeneratedRepo)(nil)
)
