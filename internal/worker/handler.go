package worker

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/sami8890/Sam-pixels/internal/domain"
	"github.com/sami8890/Sam-pixels/internal/metrics"
	"github.com/sami8890/Sam-pixels/internal/processor"
	"github.com/sami8890/Sam-pixels/internal/repository"
	"github.com/sami8890/Sam-pixels/internal/service"
	"github.com/sami8890/Sam-pixels/internal/storage"
)

// maxInputBytes caps how much of a stored upload is read into memory.
const maxInputBytes = 100 << 20

// ImageHandler executes image processing jobs: it loads the input from
// storage, runs the executor, stores the output, finalizes the job row, and
// records quota usage.
type ImageHandler struct {
	queries  *repository.Queries
	executor processor.Executor
	store    storage.Storage
	quota    service.QuotaService
	logger   *slog.Logger
}

// NewImageHandler creates the handler used for all processing job types.
func NewImageHandler(
	queries *repository.Queries,
	executor processor.Executor,
	store storage.Storage,
	quota service.QuotaService,
	logger *slog.Logger,
) *ImageHandler {
	return &ImageHandler{
		queries:  queries,
		executor: executor,
		store:    store,
		quota:    quota,
		logger:   logger,
	}
}

// Handle runs one job to completion or failure.
//
// Usage is recorded only after the operation succeeded and the output is
// stored: a failed job never consumes quota.
func (h *ImageHandler) Handle(ctx context.Context, job domain.ProcessingJob) error {
	start := time.Now()

	err := h.process(ctx, job)

	elapsed := time.Since(start)
	metrics.JobDuration.WithLabelValues(string(job.Type)).Observe(elapsed.Seconds())

	if err != nil {
		metrics.JobsTotal.WithLabelValues(string(job.Type), "failed").Inc()
		metrics.ImagesProcessed.WithLabelValues(string(job.Type), "failed").Inc()
		if markErr := h.queries.MarkJobFailed(ctx, job.ID, domain.ErrorMessage(err)); markErr != nil {
			h.logger.Error("failed to mark job failed", "job_id", job.ID, "error", markErr)
		}
		return err
	}

	metrics.JobsTotal.WithLabelValues(string(job.Type), "completed").Inc()
	metrics.ImagesProcessed.WithLabelValues(string(job.Type), "completed").Inc()
	return nil
}

func (h *ImageHandler) process(ctx context.Context, job domain.ProcessingJob) error {
	const op = "ImageHandler.process"

	body, _, err := h.store.Get(ctx, job.InputKey)
	if err != nil {
		return domain.Internal(err, op, "Failed to load input image")
	}
	input, err := io.ReadAll(io.LimitReader(body, maxInputBytes))
	body.Close()
	if err != nil {
		return domain.Internal(err, op, "Failed to read input image")
	}

	start := time.Now()
	result, err := h.executor.Execute(processor.WithOwner(ctx, job.UserID), job.Type, input, job.Settings)
	if err != nil {
		return err
	}
	processingTime := time.Since(start).Seconds()

	outputKey := storage.ProcessedKey(job.UserID, job.ID, storage.ExtensionForContentType(result.ContentType))
	err = h.store.Put(ctx, outputKey, bytes.NewReader(result.Data), storage.PutOptions{
		ContentType: result.ContentType,
		Overwrite:   true,
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to store result")
	}

	if err := h.queries.MarkJobCompleted(ctx, job.ID, outputKey, processingTime); err != nil {
		return domain.Internal(err, op, "Failed to finalize job")
	}

	if err := h.quota.RecordUsage(ctx, job.UserID, job.Type); err != nil {
		// The work is done and delivered; a recording failure must not fail
		// the job. It does mean the ledger undercounts, so log loudly.
		h.logger.Error("failed to record usage after completed job",
			"job_id", job.ID, "user_id", job.UserID, "type", job.Type, "error", err)
	}

	return nil
}
