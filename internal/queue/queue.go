package queue

import (
	"errors"
	"sync"

	"snippetd/internal/models"
)

var ErrClosed = errors.New("job queue is closed")

// JobQueue is a blocking FIFO of job records shared between submitters and
// workers. It is built on a mutex and condition variable so idle workers
// park inside Dequeue instead of polling. A closed queue still hands out the
// items enqueued before Close; Dequeue reports end-of-queue only once the
// backlog is empty.
type JobQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*models.JobRecord
	closed bool
}

func New() *JobQueue {
	q := &JobQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a job to the tail and wakes one waiting worker.
func (q *JobQueue) Enqueue(job *models.JobRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, job)
	q.cond.Signal()
	return nil
}

// Dequeue removes and returns the head, blocking until an item is available.
// The second return value is false once the queue is closed and drained,
// signalling the caller to exit its loop. No two callers ever receive the
// same job.
func (q *JobQueue) Dequeue() (*models.JobRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	job := q.items[0]
	q.items = q.items[1:]
	return job, true
}

// Drain atomically removes and returns every queued item. Used by immediate
// shutdown to cancel work that no worker has picked up yet.
func (q *JobQueue) Drain() []*models.JobRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

// Close marks the queue as closed and wakes all blocked workers. Idempotent.
func (q *JobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
