package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sami8890/Sam-pixels/internal/processor"
	"github.com/sami8890/Sam-pixels/internal/repository"
)

// apiUsageRecorder persists external API call records for cost
// monitoring. Failures are logged and swallowed so a recording problem
// never fails a processing job.
type apiUsageRecorder struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewAPIUsageRecorder creates a recorder backed by the api_usage table.
func NewAPIUsageRecorder(queries *repository.Queries, logger *slog.Logger) processor.CallRecorder {
	return &apiUsageRecorder{
		queries: queries,
		logger:  logger,
	}
}

func (r *apiUsageRecorder) RecordCall(ctx context.Context, call processor.APICall) {
	if call.UserID == uuid.Nil {
		r.logger.Warn("api call without an owner, skipping record",
			"api", call.APIName)
		return
	}

	_, err := r.queries.CreateAPIUsage(ctx, repository.CreateAPIUsageParams{
		UserID:         call.UserID,
		APIName:        call.APIName,
		Endpoint:       call.Endpoint,
		RequestSize:    call.RequestSize,
		ResponseSize:   call.ResponseSize,
		ProcessingTime: call.Duration,
		Success:        call.Success,
		ErrorMessage:   call.ErrorMessage,
	})
	if err != nil {
		r.logger.Error("failed to record api usage",
			"api", call.APIName,
			"user_id", call.UserID,
			"error", err)
	}
}
