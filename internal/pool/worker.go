package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"snippetd/internal/models"
	"snippetd/internal/state"
)

// worker is one long-lived execution goroutine. It loops between idle
// (blocked in Dequeue) and running a single job until the queue reports
// end-of-queue.
type worker struct {
	id   int
	pool *WorkerPool
}

func (w *worker) loop(ctx context.Context) {
	defer w.pool.wg.Done()

	log := w.pool.log.WithField("worker", w.id)
	log.Debug("worker started")

	for {
		job, ok := w.pool.queue.Dequeue()
		if !ok {
			log.Debug("worker stopped")
			return
		}
		w.pool.metrics.SetQueueDepth(w.pool.queue.Len())

		// A job cancelled while queued is skipped without ever running.
		if job.Status() == state.StatusCancelled {
			log.WithField("job_id", job.ID()).Debug("skipping cancelled job")
			continue
		}

		w.run(ctx, log, job)
	}
}

func (w *worker) run(ctx context.Context, log *logrus.Entry, job *models.JobRecord) {
	if err := job.MarkRunning(); err != nil {
		log.WithField("job_id", job.ID()).WithError(err).Warn("dequeued job not runnable")
		return
	}
	startedAt := time.Now()
	w.pool.metrics.JobStarted()
	w.pool.persist(ctx, job.Snapshot(), false)

	result, err := w.execute(ctx, job)
	if err != nil {
		if markErr := job.MarkFailed(err.Error()); markErr != nil {
			log.WithField("job_id", job.ID()).WithError(markErr).Error("could not record job failure")
		}
		log.WithFields(logrus.Fields{"job_id": job.ID(), "duration": time.Since(startedAt)}).
			WithError(err).Info("job failed")
	} else {
		if markErr := job.MarkDone(result); markErr != nil {
			log.WithField("job_id", job.ID()).WithError(markErr).Error("could not record job result")
		}
		log.WithFields(logrus.Fields{"job_id": job.ID(), "duration": time.Since(startedAt)}).
			Info("job done")
	}

	w.pool.finishJob(job, startedAt)
}

// execute invokes the runner and converts a panic into an ordinary failure
// so a misbehaving snippet can never take the worker down.
func (w *worker) execute(ctx context.Context, job *models.JobRecord) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runner panic: %v", r)
		}
	}()
	return w.pool.runner.Execute(ctx, job.Source())
}
