package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

const jobColumns = `id, user_id, type, status, input_key, output_key, settings,
	processing_time, error_message, created_at, started_at, completed_at`

func scanJob(row interface{ Scan(...interface{}) error }) (domain.ProcessingJob, error) {
	var (
		j           domain.ProcessingJob
		outputKey   sql.NullString
		settings    pqtype.NullRawMessage
		procTime    sql.NullFloat64
		errMessage  sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&j.ID,
		&j.UserID,
		&j.Type,
		&j.Status,
		&j.InputKey,
		&outputKey,
		&settings,
		&procTime,
		&errMessage,
		&j.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return domain.ProcessingJob{}, err
	}
	j.OutputKey = domain.NullStringValue(outputKey)
	if settings.Valid {
		j.Settings = json.RawMessage(settings.RawMessage)
	}
	if procTime.Valid {
		j.ProcessingTime = &procTime.Float64
	}
	j.ErrorMessage = domain.NullStringValue(errMessage)
	j.StartedAt = domain.NullTimeValue(startedAt)
	j.CompletedAt = domain.NullTimeValue(completedAt)
	return j, nil
}

// CreateJobParams contains the fields needed to enqueue a processing job.
type CreateJobParams struct {
	UserID   uuid.UUID
	Type     domain.OperationType
	InputKey string
	Settings json.RawMessage
}

// CreateJob inserts a pending processing job.
func (q *Queries) CreateJob(ctx context.Context, params CreateJobParams) (domain.ProcessingJob, error) {
	settings := pqtype.NullRawMessage{RawMessage: params.Settings, Valid: params.Settings != nil}
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO processing_jobs (id, user_id, type, status, input_key, settings)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+jobColumns,
		uuid.New(), params.UserID, params.Type, domain.JobStatusPending, params.InputKey, settings,
	)
	return scanJob(row)
}

// GetJob fetches a job by primary key.
func (q *Queries) GetJob(ctx context.Context, id uuid.UUID) (domain.ProcessingJob, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM processing_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// GetJobForUser fetches a job by primary key, scoped to its owner.
func (q *Queries) GetJobForUser(ctx context.Context, id, userID uuid.UUID) (domain.ProcessingJob, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM processing_jobs WHERE id = $1 AND user_id = $2`, id, userID)
	return scanJob(row)
}

// ListJobsForUser returns a page of the user's jobs, newest first.
func (q *Queries) ListJobsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.ProcessingJob, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM processing_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.ProcessingJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// DequeueJob claims the oldest pending job, marking it processing. SKIP
// LOCKED lets multiple workers poll the same table without blocking each
// other. Returns sql.ErrNoRows when the queue is empty.
func (q *Queries) DequeueJob(ctx context.Context) (domain.ProcessingJob, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE processing_jobs
		SET status = $1, started_at = now(), updated_at = now()
		WHERE id = (
			SELECT id FROM processing_jobs
			WHERE status = $2
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		domain.JobStatusProcessing, domain.JobStatusPending,
	)
	return scanJob(row)
}

// MarkJobCompleted records the output of a successful job.
func (q *Queries) MarkJobCompleted(ctx context.Context, id uuid.UUID, outputKey string, processingTime float64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE processing_jobs
		SET status = $2, output_key = $3, processing_time = $4,
		    completed_at = now(), updated_at = now()
		WHERE id = $1`,
		id, domain.JobStatusCompleted, outputKey, processingTime,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkJobFailed records a job failure with its error message.
func (q *Queries) MarkJobFailed(ctx context.Context, id uuid.UUID, message string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE processing_jobs
		SET status = $2, error_message = $3, completed_at = now(), updated_at = now()
		WHERE id = $1`,
		id, domain.JobStatusFailed, message,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RecoverStaleJobs resets jobs stuck in processing longer than the given
// cutoff back to pending so a worker can pick them up again. Returns the
// number of jobs recovered.
func (q *Queries) RecoverStaleJobs(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE processing_jobs
		SET status = $1, started_at = NULL, updated_at = now()
		WHERE status = $2 AND started_at < $3`,
		domain.JobStatusPending, domain.JobStatusProcessing, olderThan,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
