package registry

import (
	"errors"
	"fmt"
	"sync"

	"snippetd/internal/models"
)

var (
	ErrNotFound    = errors.New("job not found")
	ErrDuplicateID = errors.New("duplicate job id")
)

// JobRegistry maps job ids to their records for status queries and
// cancellation. Entries are added at submission and kept for the process
// lifetime; the registry never hands out mutable access beyond the record
// pointer the pool itself owns.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*models.JobRecord
}

func New() *JobRegistry {
	return &JobRegistry{
		jobs: make(map[string]*models.JobRecord),
	}
}

// Register inserts a new record. Ids are uuid-assigned so a collision should
// not happen; the check is defensive.
func (r *JobRegistry) Register(job *models.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, job.ID())
	}
	r.jobs[job.ID()] = job
	return nil
}

func (r *JobRegistry) Lookup(id string) (*models.JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job, nil
}

// Views returns read-only snapshots of every known job.
func (r *JobRegistry) Views() []models.JobView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]models.JobView, 0, len(r.jobs))
	for _, job := range r.jobs {
		views = append(views, job.Snapshot())
	}
	return views
}

func (r *JobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
