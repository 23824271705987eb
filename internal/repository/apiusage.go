package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

const apiUsageColumns = `id, user_id, api_name, endpoint, request_size, response_size,
	processing_time_ms, success, error_message, created_at`

// CreateAPIUsageParams contains the fields for one external API call record.
type CreateAPIUsageParams struct {
	UserID         uuid.UUID
	APIName        string
	Endpoint       string
	RequestSize    int64
	ResponseSize   int64
	ProcessingTime time.Duration
	Success        bool
	ErrorMessage   string
}

// CreateAPIUsage appends an external API call record.
func (q *Queries) CreateAPIUsage(ctx context.Context, params CreateAPIUsageParams) (domain.APIUsage, error) {
	var (
		u   domain.APIUsage
		ms  int64
		err error
	)
	err = q.db.QueryRowContext(ctx, `
		INSERT INTO api_usage
			(id, user_id, api_name, endpoint, request_size, response_size,
			 processing_time_ms, success, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+apiUsageColumns,
		uuid.New(),
		params.UserID,
		params.APIName,
		params.Endpoint,
		params.RequestSize,
		params.ResponseSize,
		params.ProcessingTime.Milliseconds(),
		params.Success,
		params.ErrorMessage,
	).Scan(
		&u.ID,
		&u.UserID,
		&u.APIName,
		&u.Endpoint,
		&u.RequestSize,
		&u.ResponseSize,
		&ms,
		&u.Success,
		&u.ErrorMessage,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.APIUsage{}, err
	}
	u.ProcessingTime = time.Duration(ms) * time.Millisecond
	return u, nil
}
