package job

import (
	"context"
	"slices"
	"sync"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps run records in memory for the life of the process,
// like the media library they refer to. Records are stored as snapshots: the
// generator saves its working copy after every change and readers get clones.
//
// With a history limit, saving a new record evicts the oldest finished
// records beyond the limit. Running or idle records are never evicted.
type MemoryRepository struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	history int
}

// MemoryOption configures a MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithHistory caps the number of records kept. Zero or less keeps all.
func WithHistory(n int) MemoryOption {
	return func(r *MemoryRepository) {
		r.history = n
	}
}

// NewMemoryRepository creates an empty run record store.
func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{jobs: make(map[string]*Job)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save stores a snapshot of job, replacing the earlier snapshot of the same
// run. Saving a new run may evict old finished runs.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, known := r.jobs[job.ID]
	r.jobs[job.ID] = job.Clone()
	if !known {
		r.evictLocked()
	}
	return nil
}

// FindByID returns a snapshot of the run with the given ID.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// List returns snapshots of all runs, oldest first.
func (r *MemoryRepository) List(_ context.Context) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		result = append(result, job.Clone())
	}
	slices.SortFunc(result, olderFirst)
	return result, nil
}

// Delete forgets a run.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}

// evictLocked drops the oldest finished runs while the store holds more
// than the history limit.
func (r *MemoryRepository) evictLocked() {
	excess := len(r.jobs) - r.history
	if r.history <= 0 || excess <= 0 {
		return
	}

	finished := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if job.IsTerminal() {
			finished = append(finished, job)
		}
	}
	slices.SortFunc(finished, olderFirst)
	for _, job := range finished[:min(excess, len(finished))] {
		delete(r.jobs, job.ID)
	}
}

// olderFirst orders runs by creation time, then by ID.
func olderFirst(a, b *Job) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}
