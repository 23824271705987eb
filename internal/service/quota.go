// This file implements the quota facade: limit reporting, the admission
// check, and usage recording against the daily ledger.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sami8890/Sam-pixels/internal/domain"
	"github.com/sami8890/Sam-pixels/internal/metrics"
	"github.com/sami8890/Sam-pixels/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService defines operations for reporting and enforcing per-day
// processing quotas.
//
// CanProcess and RecordUsage are two separate steps, not one atomic
// check-and-increment. Two requests racing past the same last slot can both
// be admitted; the counters still record every completed operation, so the
// ledger never undercounts. Recording happens after the operation succeeds,
// which means a failed operation never burns quota.
type QuotaService interface {
	// GetLimits returns today's usage and ceilings for every quota bucket.
	// The table always contains all three buckets regardless of tier.
	GetLimits(ctx context.Context, userID uuid.UUID) (domain.LimitTable, error)

	// CanProcess reports whether one more operation of the given type is
	// admissible today. It never mutates the ledger.
	CanProcess(ctx context.Context, userID uuid.UUID, op domain.OperationType) (bool, error)

	// CheckQuota is CanProcess expressed as an error: nil when admissible,
	// an EPAYMENT QuotaExceeded error when the bucket is exhausted.
	CheckQuota(ctx context.Context, userID uuid.UUID, op domain.OperationType) error

	// RecordUsage increments today's counter for the operation type. An
	// unrecognized operation type persists the row untouched rather than
	// failing.
	RecordUsage(ctx context.Context, userID uuid.UUID, op domain.OperationType) error

	// GetHistory returns the user's ledger rows for the trailing window of
	// days (today included), oldest first. Days without activity have no row.
	GetHistory(ctx context.Context, userID uuid.UUID, days int) ([]domain.DailyUsage, error)
}

// History window bounds for GetHistory.
const (
	defaultHistoryDays = 30
	maxHistoryDays     = 90
)

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	queries      *repository.Queries
	entitlements EntitlementService
	logger       *slog.Logger

	// now is injectable so tests can pin the calendar day.
	now func() time.Time
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(queries *repository.Queries, entitlements EntitlementService, logger *slog.Logger) QuotaService {
	return &quotaService{
		queries:      queries,
		entitlements: entitlements,
		logger:       logger,
		now:          time.Now,
	}
}

// today returns the current calendar date in UTC with a zero time component.
// Usage resets at UTC midnight.
func (s *quotaService) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// resolve loads today's ledger row and the user's plan (nil for free tier).
func (s *quotaService) resolve(ctx context.Context, op string, userID uuid.UUID) (domain.DailyUsage, *domain.SubscriptionPlan, error) {
	sub, err := s.entitlements.ActiveSubscription(ctx, userID)
	if err != nil {
		return domain.DailyUsage{}, nil, err
	}

	usage, err := s.queries.GetOrCreateDailyUsage(ctx, userID, s.today())
	if err != nil {
		return domain.DailyUsage{}, nil, domain.Internal(err, op, "Failed to load usage ledger")
	}

	var plan *domain.SubscriptionPlan
	if sub != nil {
		plan = sub.Plan
	}
	return usage, plan, nil
}

// GetLimits returns today's usage and ceilings for every quota bucket.
func (s *quotaService) GetLimits(ctx context.Context, userID uuid.UUID) (domain.LimitTable, error) {
	const op = "QuotaService.GetLimits"

	usage, plan, err := s.resolve(ctx, op, userID)
	if err != nil {
		return nil, err
	}
	return usage.Limits(plan), nil
}

// CanProcess reports whether one more operation is admissible today.
func (s *quotaService) CanProcess(ctx context.Context, userID uuid.UUID, op domain.OperationType) (bool, error) {
	const opName = "QuotaService.CanProcess"

	usage, plan, err := s.resolve(ctx, opName, userID)
	if err != nil {
		return false, err
	}
	return usage.CanProcess(plan, op), nil
}

// CheckQuota returns nil when admissible or a QuotaExceeded error when not.
func (s *quotaService) CheckQuota(ctx context.Context, userID uuid.UUID, op domain.OperationType) error {
	const opName = "QuotaService.CheckQuota"

	usage, plan, err := s.resolve(ctx, opName, userID)
	if err != nil {
		return err
	}
	if usage.CanProcess(plan, op) {
		return nil
	}

	bucket := domain.BucketFor(op)
	entry := usage.Limits(plan)[bucket]

	s.logger.Info("quota exceeded",
		"user_id", userID,
		"operation", op,
		"bucket", bucket,
		"used", entry.Used,
		"limit", entry.Limit,
	)
	metrics.QuotaDenials.WithLabelValues(string(bucket)).Inc()

	return domain.QuotaExceeded(opName, bucket, entry.Used, entry.Limit)
}

// RecordUsage increments today's counter for the operation type.
func (s *quotaService) RecordUsage(ctx context.Context, userID uuid.UUID, op domain.OperationType) error {
	const opName = "QuotaService.RecordUsage"

	day := s.today()

	// Ensure the row exists, then bump in place. The upsert makes the first
	// recording of a day safe under concurrency.
	if _, err := s.queries.GetOrCreateDailyUsage(ctx, userID, day); err != nil {
		return domain.Internal(err, opName, "Failed to load usage ledger")
	}
	if _, err := s.queries.IncrementDailyUsage(ctx, userID, day, op); err != nil {
		return domain.Internal(err, opName, "Failed to record usage")
	}

	metrics.OperationsRecorded.WithLabelValues(string(domain.BucketFor(op))).Inc()
	return nil
}

// GetHistory returns the trailing window of ledger rows, oldest first.
func (s *quotaService) GetHistory(ctx context.Context, userID uuid.UUID, days int) ([]domain.DailyUsage, error) {
	const opName = "QuotaService.GetHistory"

	if days <= 0 {
		days = defaultHistoryDays
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}

	since := s.today().AddDate(0, 0, -(days - 1))
	usages, err := s.queries.ListDailyUsageSince(ctx, userID, since)
	if err != nil {
		return nil, domain.Internal(err, opName, "Failed to load usage history")
	}
	return usages, nil
}
