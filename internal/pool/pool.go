package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"snippetd/internal/broker"
	"snippetd/internal/metrics"
	"snippetd/internal/models"
	"snippetd/internal/queue"
	"snippetd/internal/registry"
	"snippetd/internal/runner"
	"snippetd/internal/store"
)

var (
	ErrAlreadyStarted = errors.New("worker pool already started")
	ErrPoolClosed     = errors.New("worker pool is closed")
)

// ShutdownMode selects what happens to queued-but-not-started jobs when the
// pool stops.
type ShutdownMode int

const (
	// Graceful stops intake and lets every queued and in-flight job finish.
	Graceful ShutdownMode = iota
	// Immediate stops intake, cancels queued jobs and only waits for jobs
	// already running.
	Immediate
)

// SubmitRequest carries everything needed to create a job.
type SubmitRequest struct {
	Description string
	Source      string
	Schedule    models.ScheduleInterval
}

const archiveTimeout = 5 * time.Second

// WorkerPool owns the job queue, the registry and a fixed set of worker
// goroutines. It is constructed once per process, started at boot and shut
// down at termination.
type WorkerPool struct {
	runner      runner.Runner
	queue       *queue.JobQueue
	registry    *registry.JobRegistry
	archive     store.JobArchive     // optional
	broker      broker.MessageBroker // optional
	brokerQueue string
	metrics     *metrics.PoolMetrics // optional
	log         *logrus.Entry

	mu      sync.Mutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

type Option func(*WorkerPool)

// WithArchive attaches a persistence collaborator that receives every job
// snapshot best-effort.
func WithArchive(a store.JobArchive) Option {
	return func(p *WorkerPool) { p.archive = a }
}

// WithBroker publishes a JSON event on the named queue for every terminal
// transition.
func WithBroker(b broker.MessageBroker, queueName string) Option {
	return func(p *WorkerPool) {
		p.broker = b
		p.brokerQueue = queueName
	}
}

func WithMetrics(m *metrics.PoolMetrics) Option {
	return func(p *WorkerPool) { p.metrics = m }
}

func WithLogger(log *logrus.Entry) Option {
	return func(p *WorkerPool) { p.log = log }
}

func New(r runner.Runner, opts ...Option) *WorkerPool {
	p := &WorkerPool{
		runner:   r,
		queue:    queue.New(),
		registry: registry.New(),
		log:      logrus.WithField("component", "pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches workerCount workers. Calling Start twice is an error.
func (p *WorkerPool) Start(ctx context.Context, workerCount int) error {
	if workerCount < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", workerCount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	if p.closed {
		return ErrPoolClosed
	}
	p.started = true

	for i := 0; i < workerCount; i++ {
		w := &worker{id: i, pool: p}
		p.wg.Add(1)
		go w.loop(ctx)
	}
	p.log.WithField("workers", workerCount).Info("worker pool started")
	return nil
}

// Submit creates a pending job, registers it and enqueues it for the next
// idle worker. It returns the assigned id immediately and never waits for
// execution.
func (p *WorkerPool) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", ErrPoolClosed
	}
	p.mu.Unlock()

	job := models.NewJobRecord(uuid.NewString(), req.Description, req.Source, req.Schedule)

	if err := p.registry.Register(job); err != nil {
		return "", err
	}
	if err := p.queue.Enqueue(job); err != nil {
		// Shutdown raced the submission; the registered record must not be
		// left pending forever.
		_ = job.MarkCancelled()
		return "", ErrPoolClosed
	}

	p.metrics.JobSubmitted()
	p.metrics.SetQueueDepth(p.queue.Len())
	p.persist(ctx, job.Snapshot(), true)

	p.log.WithField("job_id", job.ID()).Debug("job submitted")
	return job.ID(), nil
}

// Status returns a snapshot of the job or registry.ErrNotFound.
func (p *WorkerPool) Status(id string) (models.JobView, error) {
	job, err := p.registry.Lookup(id)
	if err != nil {
		return models.JobView{}, err
	}
	return job.Snapshot(), nil
}

// List returns snapshots of every job the pool has seen.
func (p *WorkerPool) List() []models.JobView {
	return p.registry.Views()
}

// Cancel marks a still-pending job cancelled. A job that is already running
// cannot be interrupted; the transition check surfaces that as an error.
func (p *WorkerPool) Cancel(id string) error {
	job, err := p.registry.Lookup(id)
	if err != nil {
		return err
	}
	if err := job.MarkCancelled(); err != nil {
		return err
	}
	p.finishJob(job, time.Time{})
	p.log.WithField("job_id", id).Info("job cancelled")
	return nil
}

// Shutdown stops the pool. With Graceful, workers drain the queue before
// exiting; with Immediate, still-queued jobs are cancelled and only in-flight
// jobs run to completion. Waits for all workers to exit or ctx to be done.
// Safe to call more than once.
func (p *WorkerPool) Shutdown(ctx context.Context, mode ShutdownMode) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if mode == Immediate {
		for _, job := range p.queue.Drain() {
			if err := job.MarkCancelled(); err != nil {
				p.log.WithField("job_id", job.ID()).WithError(err).Warn("could not cancel queued job")
				continue
			}
			p.finishJob(job, time.Time{})
		}
	}
	p.queue.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finishJob records a terminal transition with the external collaborators:
// metrics, archive and broker. startedAt is zero for cancelled jobs.
func (p *WorkerPool) finishJob(job *models.JobRecord, startedAt time.Time) {
	view := job.Snapshot()

	var duration time.Duration
	if !startedAt.IsZero() && view.FinishedAt != nil {
		duration = view.FinishedAt.Sub(startedAt)
	}
	p.metrics.JobFinished(view.Status, duration)
	p.persist(context.Background(), view, false)
	p.publish(view)
}

func (p *WorkerPool) persist(ctx context.Context, view models.JobView, insert bool) {
	if p.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	var err error
	if insert {
		err = p.archive.Insert(ctx, view)
	} else {
		err = p.archive.UpdateStatus(ctx, view)
	}
	if err != nil {
		p.log.WithField("job_id", view.ID).WithError(err).Warn("archive write failed")
	}
}

func (p *WorkerPool) publish(view models.JobView) {
	if p.broker == nil {
		return
	}
	body, err := json.Marshal(view)
	if err != nil {
		p.log.WithField("job_id", view.ID).WithError(err).Warn("marshal job event failed")
		return
	}
	if err := p.broker.Publish(p.brokerQueue, body); err != nil {
		p.log.WithField("job_id", view.ID).WithError(err).Warn("publish job event failed")
	}
}
