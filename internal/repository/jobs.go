package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"realscan/internal/models"
)

// CreateJob records a queued scrape job and returns it.
func (r *Repository) CreateJob(ctx context.Context, sourceCodes []string, fullRescan bool) (*models.ScrapeJob, error) {
	job := &models.ScrapeJob{
		ID:          uuid.New(),
		SourceCodes: sourceCodes,
		FullRescan:  fullRescan,
		Status:      models.JobQueued,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO scrape_jobs (id, source_codes, full_rescan, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.SourceCodes, job.FullRescan, job.Status, job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create scrape job: %w", err)
	}
	return job, nil
}

// JobUpdate carries a partial update; nil fields are left untouched.
type JobUpdate struct {
	Status          string
	Progress        *int
	ListingsFound   *int
	ListingsNew     *int
	ListingsUpdated *int
	ErrorMessage    *string
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// buildJobUpdate assembles the SET clause for a partial job update.
// Argument numbering starts at $2; $1 is reserved for the job id.
func buildJobUpdate(upd JobUpdate) (string, []interface{}) {
	var sets []string
	var args []interface{}
	add := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)+1))
	}

	if upd.Status != "" {
		add("status", upd.Status)
	}
	if upd.Progress != nil {
		add("progress", *upd.Progress)
	}
	if upd.ListingsFound != nil {
		add("listings_found", *upd.ListingsFound)
	}
	if upd.ListingsNew != nil {
		add("listings_new", *upd.ListingsNew)
	}
	if upd.ListingsUpdated != nil {
		add("listings_updated", *upd.ListingsUpdated)
	}
	if upd.ErrorMessage != nil {
		add("error_message", *upd.ErrorMessage)
	}
	if upd.StartedAt != nil {
		add("started_at", *upd.StartedAt)
	}
	if upd.FinishedAt != nil {
		add("finished_at", *upd.FinishedAt)
	}
	return strings.Join(sets, ", "), args
}

// UpdateJob applies a partial update to a scrape job. Terminal status
// transitions are expected to carry FinishedAt; the runner owns that
// discipline, the store just writes what it is handed.
func (r *Repository) UpdateJob(ctx context.Context, id uuid.UUID, upd JobUpdate) error {
	setClause, args := buildJobUpdate(upd)
	if setClause == "" {
		return nil
	}
	query := fmt.Sprintf("UPDATE scrape_jobs SET %s WHERE id = $1", setClause)
	allArgs := append([]interface{}{id}, args...)
	tag, err := r.db.Exec(ctx, query, allArgs...)
	if err != nil {
		return fmt.Errorf("failed to update scrape job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("scrape job %s not found", id)
	}
	return nil
}

const jobColumns = `id, source_codes, full_rescan, status, progress,
	listings_found, listings_new, listings_updated,
	error_message, created_at, started_at, finished_at`

func scanJob(row pgx.Row) (*models.ScrapeJob, error) {
	var job models.ScrapeJob
	err := row.Scan(
		&job.ID, &job.SourceCodes, &job.FullRescan, &job.Status, &job.Progress,
		&job.ListingsFound, &job.ListingsNew, &job.ListingsUpdated,
		&job.ErrorMessage, &job.CreatedAt, &job.StartedAt, &job.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob returns a job by id, or nil when no such job exists.
func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (*models.ScrapeJob, error) {
	job, err := scanJob(r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM scrape_jobs WHERE id = $1", jobColumns), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scrape job %s: %w", id, err)
	}
	return job, nil
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (r *Repository) ListJobs(ctx context.Context, limit, offset int, status string) ([]*models.ScrapeJob, error) {
	query := fmt.Sprintf("SELECT %s FROM scrape_jobs", jobColumns)
	args := []interface{}{}
	if status != "" {
		args = append(args, status)
		query += " WHERE status = $1"
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scrape jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.ScrapeJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scrape job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// LatestJob returns the most recently created job, or nil when the
// table is empty.
func (r *Repository) LatestJob(ctx context.Context) (*models.ScrapeJob, error) {
	job, err := scanJob(r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM scrape_jobs ORDER BY created_at DESC LIMIT 1", jobColumns)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest scrape job: %w", err)
	}
	return job, nil
}
