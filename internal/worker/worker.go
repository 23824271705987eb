// Package worker runs the background processing loop: it claims pending
// jobs from the database queue and hands them to a Handler.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sami8890/Sam-pixels/internal/domain"
	"github.com/sami8890/Sam-pixels/internal/repository"
)

// Handler executes one claimed job. Implementations own storage access,
// status updates, and usage recording.
type Handler interface {
	Handle(ctx context.Context, job domain.ProcessingJob) error
}

// Worker polls the processing_jobs table and dispatches claimed jobs.
type Worker struct {
	queries *repository.Queries
	handler Handler
	config  Config
	logger  *slog.Logger

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a Worker. It must be started with Start and stopped with Stop.
func New(queries *repository.Queries, handler Handler, config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Worker{
		queries: queries,
		handler: handler,
		config:  config,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start recovers stale jobs and launches the worker goroutines.
func (w *Worker) Start(ctx context.Context) {
	if err := w.recoverStaleJobs(ctx); err != nil {
		w.logger.Error("failed to recover stale jobs", "error", err)
	}

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i+1)
	}

	w.logger.Info("worker started", "concurrency", w.config.Concurrency)
}

// Stop signals all workers to stop and waits up to ShutdownTimeout.
func (w *Worker) Stop() {
	close(w.stopCh)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("worker shutdown timeout exceeded, jobs may still be running")
	}
}

// recoverStaleJobs resets jobs stuck in processing since before the
// threshold, usually left behind by a crashed worker.
func (w *Worker) recoverStaleJobs(ctx context.Context) error {
	cutoff := time.Now().Add(-w.config.StaleJobThreshold)
	count, err := w.queries.RecoverStaleJobs(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("recover stale jobs: %w", err)
	}
	if count > 0 {
		w.logger.Warn("recovered stale jobs", "count", count)
	}
	return nil
}

func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", workerID)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain the queue before going back to sleep.
			for {
				err := w.processNextJob(ctx, logger)
				if err == nil {
					continue
				}
				if !errors.Is(err, sql.ErrNoRows) {
					logger.Error("failed to process job", "error", err)
				}
				break
			}
		}
	}
}

// processNextJob claims and executes one job. Returns sql.ErrNoRows when
// the queue is empty.
func (w *Worker) processNextJob(ctx context.Context, logger *slog.Logger) error {
	job, err := w.queries.DequeueJob(ctx)
	if err != nil {
		return err
	}

	logger = logger.With("job_id", job.ID, "job_type", job.Type)
	logger.Info("processing job")

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	if err := w.handler.Handle(jobCtx, job); err != nil {
		logger.Error("job failed", "error", err)
		return fmt.Errorf("execute job %s: %w", job.ID, err)
	}

	logger.Info("job completed")
	return nil
}
