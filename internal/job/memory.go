package job

import (
	"context"
	"sync"
	"time"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; production uses PostgresRepository.
type MemoryRepository struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewMemoryRepository creates a new in-memory job repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		jobs: make(map[string]*Job),
	}
}

// Save inserts or replaces a job row. Test helper; the production schema is
// written by an external creator.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job.Clone()
	return nil
}

// FindByID retrieves a job by its ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.Clone(), nil
}

// CreateIfAbsent inserts the job in processing state unless it exists.
func (r *MemoryRepository) CreateIfAbsent(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return nil
	}
	clone := job.Clone()
	clone.Status = StatusProcessing
	now := time.Now()
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now
	r.jobs[job.ID] = clone
	return nil
}

// Claim transitions the row to in_progress unless another execution holds it.
func (r *MemoryRepository) Claim(_ context.Context, id string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if j.Status == StatusInProgress {
		return nil, ErrAlreadyClaimed
	}
	j.Status = StatusInProgress
	j.UpdatedAt = time.Now()
	return j.Clone(), nil
}

// ClaimNextProcessing claims the oldest row in processing state.
func (r *MemoryRepository) ClaimNextProcessing(_ context.Context) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *Job
	for _, j := range r.jobs {
		if j.Status != StatusProcessing {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, ErrNoEligibleJob
	}
	oldest.Status = StatusInProgress
	oldest.UpdatedAt = time.Now()
	return oldest.Clone(), nil
}

// MarkDone records terminal success with the published output URL.
func (r *MemoryRepository) MarkDone(_ context.Context, id, outputURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	j.Status = StatusDone
	j.OutputURL = outputURL
	j.ErrorMessage = ""
	j.UpdatedAt = time.Now()
	return nil
}

// MarkFailed records terminal failure with a human-readable message.
func (r *MemoryRepository) MarkFailed(_ context.Context, id, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	j.Status = StatusFailed
	j.ErrorMessage = errorMessage
	j.UpdatedAt = time.Now()
	return nil
}
