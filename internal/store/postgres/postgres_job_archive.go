package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"snippetd/internal/models"
	"snippetd/internal/state"
)

type PostgresJobArchive struct {
	db *sql.DB
}

func NewPostgresJobArchive(db *sql.DB) *PostgresJobArchive {
	return &PostgresJobArchive{db: db}
}

// Migrate creates the schema and jobs table if they do not exist yet.
func (a *PostgresJobArchive) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS snippetd_schema`,
		`CREATE TABLE IF NOT EXISTS snippetd_schema.jobs (
			id           TEXT PRIMARY KEY,
			description  TEXT NOT NULL DEFAULT '',
			source       TEXT NOT NULL,
			schedule     INT NOT NULL DEFAULT 0,
			status       TEXT NOT NULL,
			result       TEXT NOT NULL DEFAULT '',
			last_error   TEXT NOT NULL DEFAULT '',
			submitted_at TIMESTAMPTZ NOT NULL,
			started_at   TIMESTAMPTZ NULL,
			finished_at  TIMESTAMPTZ NULL
		)`,
		`CREATE INDEX IF NOT EXISTS jobs_submitted_at_idx
			ON snippetd_schema.jobs (submitted_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate jobs table: %w", err)
		}
	}
	return nil
}

func (a *PostgresJobArchive) Insert(ctx context.Context, view models.JobView) error {
	query := `
		INSERT INTO snippetd_schema.jobs (
			id,
			description,
			source,
			schedule,
			status,
			submitted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := a.db.ExecContext(ctx, query,
		view.ID,
		view.Description,
		view.Source,
		int(view.Schedule),
		view.Status,
		view.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", view.ID, err)
	}
	return nil
}

func (a *PostgresJobArchive) UpdateStatus(ctx context.Context, view models.JobView) error {
	query := `
		UPDATE snippetd_schema.jobs
		SET status      = $2,
		    result      = $3,
		    last_error  = $4,
		    started_at  = $5,
		    finished_at = $6
		WHERE id = $1
	`
	result, err := a.db.ExecContext(ctx, query,
		view.ID,
		view.Status,
		view.Result,
		view.Error,
		view.StartedAt,
		view.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update job %s: %w", view.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no archived job with id %s", view.ID)
	}
	return nil
}

func (a *PostgresJobArchive) ListRecent(ctx context.Context, limit int) ([]models.JobView, error) {
	if limit < 1 {
		limit = 50
	}
	query := `
		SELECT id,
		       description,
		       source,
		       schedule,
		       status,
		       result,
		       last_error,
		       submitted_at,
		       started_at,
		       finished_at
		FROM snippetd_schema.jobs
		ORDER BY submitted_at DESC
		LIMIT $1
	`
	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var views []models.JobView
	for rows.Next() {
		var (
			view     models.JobView
			status   string
			schedule int
		)
		if err := rows.Scan(
			&view.ID,
			&view.Description,
			&view.Source,
			&schedule,
			&status,
			&view.Result,
			&view.Error,
			&view.SubmittedAt,
			&view.StartedAt,
			&view.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		view.Status = state.JobStatus(status)
		view.Schedule = models.ScheduleInterval(schedule)
		views = append(views, view)
	}
	return views, rows.Err()
}

func (a *PostgresJobArchive) Close() error {
	return a.db.Close()
}
