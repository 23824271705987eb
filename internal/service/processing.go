// This file implements the processing service: upload intake, quota-gated
// job submission, and job status reads.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sami8890/Sam-pixels/internal/domain"
	"github.com/sami8890/Sam-pixels/internal/repository"
	"github.com/sami8890/Sam-pixels/internal/storage"
)

const (
	// DefaultMaxUploadBytes caps uploads when the user's plan does not set
	// its own ceiling.
	DefaultMaxUploadBytes = 10 << 20

	defaultJobPageSize = 20
	maxJobPageSize     = 100
)

// SubmitJobParams describes one processing request.
type SubmitJobParams struct {
	UserID      uuid.UUID
	Type        domain.OperationType
	Filename    string
	ContentType string
	Data        io.Reader
	Settings    json.RawMessage
}

// =============================================================================
// Interface Definition
// =============================================================================

// ProcessingService accepts image processing requests and exposes job state.
type ProcessingService interface {
	// Submit validates the upload, checks plan capabilities and quota,
	// stores the source image, and enqueues a processing job.
	// Returns domain.EFORBIDDEN when the plan does not include the operation.
	// Returns domain.EPAYMENT when the quota bucket is exhausted.
	// Returns domain.ETOOLARGE when the upload exceeds the plan's size cap.
	Submit(ctx context.Context, params SubmitJobParams) (*domain.ProcessingJob, error)

	// GetJob returns a job owned by the user.
	GetJob(ctx context.Context, jobID, userID uuid.UUID) (*domain.ProcessingJob, error)

	// ListJobs returns a page of the user's jobs, newest first.
	ListJobs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.ProcessingJob, error)

	// ResultURL returns a download URL for a completed job's output.
	ResultURL(ctx context.Context, jobID, userID uuid.UUID) (string, error)
}

// =============================================================================
// Implementation
// =============================================================================

type processingService struct {
	queries      *repository.Queries
	quota        QuotaService
	entitlements EntitlementService
	store        storage.Storage
	logger       *slog.Logger
}

// NewProcessingService creates a new ProcessingService.
func NewProcessingService(
	queries *repository.Queries,
	quota QuotaService,
	entitlements EntitlementService,
	store storage.Storage,
	logger *slog.Logger,
) ProcessingService {
	return &processingService{
		queries:      queries,
		quota:        quota,
		entitlements: entitlements,
		store:        store,
		logger:       logger,
	}
}

// Submit validates, quota-checks, stores, and enqueues a processing request.
//
// The quota check admits the request but does not consume quota; usage is
// recorded by the worker only after the operation succeeds. Two racing
// submissions at the last slot can therefore both be admitted.
func (s *processingService) Submit(ctx context.Context, params SubmitJobParams) (*domain.ProcessingJob, error) {
	const op = "ProcessingService.Submit"

	if params.Type == "" {
		return nil, domain.Invalid(op, "Operation type is required")
	}
	if !storage.IsAllowedImageType(params.ContentType) {
		return nil, domain.Invalid(op, fmt.Sprintf("Unsupported content type %q", params.ContentType))
	}

	sub, err := s.entitlements.ActiveSubscription(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	var plan *domain.SubscriptionPlan
	if sub != nil {
		plan = sub.Plan
	}
	if !plan.Allows(params.Type) {
		return nil, domain.Forbidden(op, fmt.Sprintf("Your plan does not include %s", params.Type))
	}

	if err := s.quota.CheckQuota(ctx, params.UserID, params.Type); err != nil {
		return nil, err
	}

	maxBytes := maxUploadBytesFor(plan)

	inputKey := storage.UploadKey(params.UserID, params.Filename)
	err = s.store.Put(ctx, inputKey, params.Data, storage.PutOptions{
		ContentType: params.ContentType,
		MaxSize:     maxBytes,
	})
	if err != nil {
		if storage.IsTooLarge(err) {
			return nil, domain.Errorf(domain.ETOOLARGE, op, "Upload exceeds the %d MB limit", maxBytes>>20)
		}
		return nil, domain.Internal(err, op, "Failed to store upload")
	}

	job, err := s.queries.CreateJob(ctx, repository.CreateJobParams{
		UserID:   params.UserID,
		Type:     params.Type,
		InputKey: inputKey,
		Settings: params.Settings,
	})
	if err != nil {
		// The upload is orphaned if enqueueing fails; clean it up best effort.
		if delErr := s.store.Delete(ctx, inputKey); delErr != nil {
			s.logger.Warn("failed to clean up orphaned upload", "key", inputKey, "error", delErr)
		}
		return nil, domain.Internal(err, op, "Failed to enqueue job")
	}

	s.logger.Info("job submitted",
		"job_id", job.ID, "user_id", params.UserID, "type", params.Type)

	return &job, nil
}

// maxUploadBytesFor resolves the upload size cap from an already
// resolved plan. A nil plan means the free tier.
func maxUploadBytesFor(plan *domain.SubscriptionPlan) int64 {
	if plan == nil || plan.MaxFileSizeMB <= 0 {
		return DefaultMaxUploadBytes
	}
	return int64(plan.MaxFileSizeMB) << 20
}

// GetJob returns a job owned by the user.
func (s *processingService) GetJob(ctx context.Context, jobID, userID uuid.UUID) (*domain.ProcessingJob, error) {
	const op = "ProcessingService.GetJob"

	job, err := s.queries.GetJobForUser(ctx, jobID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "job", jobID.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve job")
	}
	return &job, nil
}

// ListJobs returns a page of the user's jobs, newest first.
func (s *processingService) ListJobs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.ProcessingJob, error) {
	const op = "ProcessingService.ListJobs"

	if limit <= 0 {
		limit = defaultJobPageSize
	}
	if limit > maxJobPageSize {
		limit = maxJobPageSize
	}
	if offset < 0 {
		offset = 0
	}

	jobs, err := s.queries.ListJobsForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list jobs")
	}
	return jobs, nil
}

// ResultURL returns a presigned download URL for a completed job's output.
func (s *processingService) ResultURL(ctx context.Context, jobID, userID uuid.UUID) (string, error) {
	const op = "ProcessingService.ResultURL"

	job, err := s.GetJob(ctx, jobID, userID)
	if err != nil {
		return "", err
	}
	if job.Status != domain.JobStatusCompleted || job.OutputKey == "" {
		return "", domain.Invalid(op, "Job has no result yet")
	}

	url, err := s.store.URL(ctx, job.OutputKey, 15*time.Minute)
	if err != nil {
		return "", domain.Internal(err, op, "Failed to generate download URL")
	}
	return url, nil
}
