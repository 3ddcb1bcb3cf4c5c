package schedule

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"snippetd/internal/models"
	"snippetd/internal/pool"
)

// Scheduler re-submits a snippet at a fixed interval. Each tick creates a
// brand new job; the pool treats it like any other submission, so a slow or
// failing run never blocks the next one.
type Scheduler struct {
	cron *cron.Cron
	pool *pool.WorkerPool
	log  *logrus.Entry

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func New(p *pool.WorkerPool, log *logrus.Entry) *Scheduler {
	if log == nil {
		log = logrus.WithField("component", "scheduler")
	}
	return &Scheduler{
		cron:    cron.New(),
		pool:    p,
		log:     log,
		entries: make(map[string]cron.EntryID),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the ticker; runs already handed to the pool are unaffected.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Add registers a recurring submission keyed by the originating job id.
func (s *Scheduler) Add(key, description, source string, interval models.ScheduleInterval) error {
	if interval == models.ScheduleNone {
		return fmt.Errorf("schedule interval must be non-zero")
	}
	if !interval.Valid() {
		return fmt.Errorf("unsupported schedule interval: %d", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		return fmt.Errorf("schedule already registered for %s", key)
	}

	spec := fmt.Sprintf("@every %dh", int(interval))
	entryID, err := s.cron.AddFunc(spec, func() {
		s.resubmit(description, source)
	})
	if err != nil {
		return fmt.Errorf("register schedule %s: %w", spec, err)
	}
	s.entries[key] = entryID

	s.log.WithFields(logrus.Fields{"key": key, "interval_hours": int(interval)}).
		Info("schedule registered")
	return nil
}

// Remove drops the recurring submission for the given key, if any.
func (s *Scheduler) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[key]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, key)
	}
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// resubmit hands a fresh copy of the snippet to the pool. The new job
// carries no schedule of its own; recurrence lives in the cron entry.
func (s *Scheduler) resubmit(description, source string) {
	id, err := s.pool.Submit(context.Background(), pool.SubmitRequest{
		Description: description,
		Source:      source,
	})
	if err != nil {
		s.log.WithError(err).Warn("scheduled submission rejected")
		return
	}
	s.log.WithField("job_id", id).Debug("scheduled job submitted")
}
