package models

import (
	"fmt"
	"sync"
	"time"

	"snippetd/internal/state"
)

// JobRecord tracks one submitted snippet through its lifecycle. Identity
// fields (id, description, source, schedule) are fixed at creation; the
// status envelope is mutated only through the Mark methods, which validate
// against the state table and stamp each timestamp exactly once. The worker
// currently executing the job is the only writer; any number of goroutines
// may read a consistent snapshot concurrently.
type JobRecord struct {
	id          string
	description string
	source      string
	schedule    ScheduleInterval

	mu          sync.RWMutex
	status      state.JobStatus
	result      string
	lastError   string
	submittedAt time.Time
	startedAt   *time.Time
	finishedAt  *time.Time
}

func NewJobRecord(id, description, source string, schedule ScheduleInterval) *JobRecord {
	return &JobRecord{
		id:          id,
		description: description,
		source:      source,
		schedule:    schedule,
		status:      state.StatusPending,
		submittedAt: time.Now(),
	}
}

func (j *JobRecord) ID() string {
	return j.id
}

func (j *JobRecord) Source() string {
	return j.source
}

func (j *JobRecord) Status() state.JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// MarkRunning transitions the job to running and stamps startedAt.
func (j *JobRecord) MarkRunning() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.checkTransition(state.StatusRunning); err != nil {
		return err
	}
	now := time.Now()
	j.status = state.StatusRunning
	j.startedAt = &now
	return nil
}

// MarkDone transitions the job to done, stores the runner output and stamps
// finishedAt.
func (j *JobRecord) MarkDone(result string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.checkTransition(state.StatusDone); err != nil {
		return err
	}
	now := time.Now()
	j.status = state.StatusDone
	j.result = result
	j.finishedAt = &now
	return nil
}

// MarkFailed transitions the job to failed, stores the failure description
// and stamps finishedAt.
func (j *JobRecord) MarkFailed(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.checkTransition(state.StatusFailed); err != nil {
		return err
	}
	now := time.Now()
	j.status = state.StatusFailed
	j.lastError = errMsg
	j.finishedAt = &now
	return nil
}

// MarkCancelled transitions a still-pending job to cancelled. A running job
// cannot be cancelled.
func (j *JobRecord) MarkCancelled() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.checkTransition(state.StatusCancelled); err != nil {
		return err
	}
	now := time.Now()
	j.status = state.StatusCancelled
	j.finishedAt = &now
	return nil
}

func (j *JobRecord) checkTransition(to state.JobStatus) error {
	if !state.IsValidTransition(j.status, to) {
		return fmt.Errorf("illegal status transition %s -> %s for job %s", j.status, to, j.id)
	}
	return nil
}

// Snapshot returns a consistent value copy of the record for external
// consumers. Pointer timestamps are copied so callers cannot reach back into
// the record.
func (j *JobRecord) Snapshot() JobView {
	j.mu.RLock()
	defer j.mu.RUnlock()

	view := JobView{
		ID:          j.id,
		Description: j.description,
		Source:      j.source,
		Schedule:    j.schedule,
		Status:      j.status,
		Result:      j.result,
		Error:       j.lastError,
		SubmittedAt: j.submittedAt,
	}
	if j.startedAt != nil {
		t := *j.startedAt
		view.StartedAt = &t
	}
	if j.finishedAt != nil {
		t := *j.finishedAt
		view.FinishedAt = &t
	}
	return view
}

// JobView is the read-only representation handed to the HTTP layer, the
// archive store and the broker.
type JobView struct {
	ID          string           `json:"id"`
	Description string           `json:"description"`
	Source      string           `json:"source"`
	Schedule    ScheduleInterval `json:"schedule"`
	Status      state.JobStatus  `json:"status"`
	Result      string           `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
}
