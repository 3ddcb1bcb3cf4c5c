package store

import (
	"context"

	"snippetd/internal/models"
)

// JobArchive persists job snapshots outside the in-memory registry so
// records survive for later inspection. The pool feeds it best-effort:
// archive failures are logged and never interfere with job execution.
type JobArchive interface {
	Insert(ctx context.Context, view models.JobView) error
	UpdateStatus(ctx context.Context, view models.JobView) error
	ListRecent(ctx context.Context, limit int) ([]models.JobView, error)
	Close() error
}
