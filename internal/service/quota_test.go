package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sami8890/Sam-pixels/internal/domain"
	"github.com/sami8890/Sam-pixels/internal/repository"
)

// =============================================================================
// Test Helpers
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// stubEntitlements returns a fixed subscription (or error) for every user.
type stubEntitlements struct {
	sub *domain.Subscription
	err error
}

func (s *stubEntitlements) ActiveSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return s.sub, s.err
}

func (s *stubEntitlements) PlanByID(ctx context.Context, planID uuid.UUID) (*domain.SubscriptionPlan, error) {
	if s.sub != nil && s.sub.Plan != nil {
		return s.sub.Plan, nil
	}
	return nil, domain.NotFound("stub", "plan", planID.String())
}

func (s *stubEntitlements) ListPlans(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	return nil, nil
}

var usageRows = []string{
	"id", "user_id", "date", "background_removal_count", "image_upscaling_count",
	"text_watermark_count", "crop_resize_count", "created_at", "updated_at",
}

// fixedDay is the pinned calendar day tests run on.
var fixedDay = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newQuotaForTest(t *testing.T, sub *domain.Subscription) (*quotaService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	svc := &quotaService{
		queries:      repository.New(db),
		entitlements: &stubEntitlements{sub: sub},
		logger:       testLogger(),
		// Mid-day instant; the service must truncate to UTC midnight.
		now: func() time.Time { return fixedDay.Add(13 * time.Hour) },
	}
	return svc, mock, func() { db.Close() }
}

func expectLedger(mock sqlmock.Sqlmock, userID uuid.UUID, bg, up, wm, cr int) {
	expectLedgerOn(mock, userID, fixedDay, bg, up, wm, cr)
}

func expectLedgerOn(mock sqlmock.Sqlmock, userID uuid.UUID, day time.Time, bg, up, wm, cr int) {
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO daily_usage \(user_id, date\)`).
		WithArgs(userID, day).
		WillReturnRows(sqlmock.NewRows(usageRows).
			AddRow(int64(1), userID, day, bg, up, wm, cr, now, now))
}

func paidSub(limit *int) *domain.Subscription {
	return &domain.Subscription{
		ID:     uuid.New(),
		PlanID: uuid.New(),
		Status: domain.SubscriptionStatusActive,
		Plan: &domain.SubscriptionPlan{
			Name:                   domain.PlanPro,
			MonthlyProcessingLimit: limit,
		},
	}
}

// =============================================================================
// GetLimits
// =============================================================================

func TestGetLimits_FreeTier(t *testing.T) {
	svc, mock, close := newQuotaForTest(t, nil)
	defer close()

	userID := uuid.New()
	expectLedger(mock, userID, 3, 1, 2, 4)

	limits, err := svc.GetLimits(context.Background(), userID)
	require.NoError(t, err)

	require.Equal(t, domain.LimitEntry{Used: 3, Limit: 10}, limits[domain.BucketBackgroundRemoval])
	require.Equal(t, domain.LimitEntry{Used: 1, Limit: 5}, limits[domain.BucketImageUpscaling])
	// Watermark and crop-resize pool into the transform bucket.
	require.Equal(t, domain.LimitEntry{Used: 6, Limit: 20}, limits[domain.BucketImageTransform])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLimits_UnlimitedPlan(t *testing.T) {
	svc, mock, close := newQuotaForTest(t, paidSub(nil))
	defer close()

	userID := uuid.New()
	expectLedger(mock, userID, 1000, 1000, 1000, 1000)

	limits, err := svc.GetLimits(context.Background(), userID)
	require.NoError(t, err)

	for _, bucket := range []domain.Bucket{
		domain.BucketBackgroundRemoval,
		domain.BucketImageUpscaling,
		domain.BucketImageTransform,
	} {
		require.Equal(t, domain.UnlimitedLimit, limits[bucket].Limit, "bucket %s", bucket)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLimits_FlatPerBucketLimit(t *testing.T) {
	limit := 100
	svc, mock, close := newQuotaForTest(t, paidSub(&limit))
	defer close()

	userID := uuid.New()
	expectLedger(mock, userID, 40, 70, 30, 30)

	limits, err := svc.GetLimits(context.Background(), userID)
	require.NoError(t, err)

	// The plan limit applies to each bucket independently, not pooled.
	require.Equal(t, domain.LimitEntry{Used: 40, Limit: 100}, limits[domain.BucketBackgroundRemoval])
	require.Equal(t, domain.LimitEntry{Used: 70, Limit: 100}, limits[domain.BucketImageUpscaling])
	require.Equal(t, domain.LimitEntry{Used: 60, Limit: 100}, limits[domain.BucketImageTransform])
	require.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// CanProcess / CheckQuota
// =============================================================================

func TestCanProcess_DeniesAtCeiling(t *testing.T) {
	svc, mock, close := newQuotaForTest(t, nil)
	defer close()

	userID := uuid.New()
	// Exactly at the free background-removal ceiling of 10.
	expectLedger(mock, userID, 10, 0, 0, 0)

	ok, err := svc.CanProcess(context.Background(), userID, domain.OpBackgroundRemoval)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCanProcess_AllowsUnderCeiling(t *testing.T) {
	svc, mock, close := newQuotaForTest(t, nil)
	defer close()

	userID := uuid.New()
	expectLedger(mock, userID, 9, 0, 0, 0)

	ok, err := svc.CanProcess(context.Background(), userID, domain.OpBackgroundRemoval)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCanProcess_UnknownOperationUsesTransformBucket(t *testing.T) {
	svc, mock, close := newQuotaForTest(t, nil)
	defer close()

	userID := uuid.New()
	// Transform bucket exhausted (watermark 12 + crop 8 = 20 of 20).
	expectLedger(mock, userID, 0, 0, 12, 8)

	ok, err := svc.CanProcess(context.Background(), userID, domain.OperationType("super-resolution"))
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCanProcess_DayRollover_ResetsCounters(t *testing.T) {
	svc, mock, close := newQuotaForTest(t, nil)
	defer close()

	userID := uuid.New()

	// Background removal is at the free ceiling for the current day.
	expectLedger(mock, userID, 10, 0, 0, 0)

	ok, err := svc.CanProcess(context.Background(), userID, domain.OpBackgroundRemoval)
	require.NoError(t, err)
	require.False(t, ok)

	// The clock crosses UTC midnight. The ledger lookup must be keyed to
	// the new day, whose fresh zero row admits again; the exhausted row
	// from the previous day plays no part.
	nextDay := fixedDay.AddDate(0, 0, 1)
	svc.now = func() time.Time { return nextDay.Add(2 * time.Hour) }
	expectLedgerOn(mock, userID, nextDay, 0, 0, 0, 0)

	ok, err = svc.CanProcess(context.Background(), userID, domain.OpBackgroundRemoval)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckQuota_ReturnsPaymentRequired(t *testing.T) {
	svc, mock, close := newQuotaForTest(t, nil)
	defer close()

	userID := uuid.New()
	expectLedger(mock, userID, 0, 5, 0, 0)

	err := svc.CheckQuota(context.Background(), userID, domain.OpImageUpscaling)
	require.Error(t, err)
	require.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckQuota_NilWhenAdmissible(t *testing.T) {
	svc, mock, close := newQuotaForTest(t, nil)
	defer close()

	userID := uuid.New()
	expectLedger(mock, userID, 0, 0, 0, 0)

	err := svc.CheckQuota(context.Background(), userID, domain.OpTextWatermark)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// RecordUsage
// =============================================================================

func TestRecordUsage_UpsertsThenIncrements(t *testing.T) {
	svc, mock, close := newQuotaForTest(t, nil)
	defer close()

	userID := uuid.New()
	now := time.Now()

	expectLedger(mock, userID, 0, 0, 0, 0)
	mock.ExpectQuery(`UPDATE daily_usage\s+SET crop_resize_count = crop_resize_count \+ 1`).
		WithArgs(userID, fixedDay).
		WillReturnRows(sqlmock.NewRows(usageRows).
			AddRow(int64(1), userID, fixedDay, 0, 0, 0, 1, now, now))

	err := svc.RecordUsage(context.Background(), userID, domain.OpCropResize)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUsage_UnknownOperationPersistsNoop(t *testing.T) {
	svc, mock, close := newQuotaForTest(t, nil)
	defer close()

	userID := uuid.New()
	now := time.Now()

	expectLedger(mock, userID, 2, 0, 0, 0)
	mock.ExpectQuery(`UPDATE daily_usage\s+SET updated_at = now\(\)`).
		WithArgs(userID, fixedDay).
		WillReturnRows(sqlmock.NewRows(usageRows).
			AddRow(int64(1), userID, fixedDay, 2, 0, 0, 0, now, now))

	err := svc.RecordUsage(context.Background(), userID, domain.OperationType("super-resolution"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// GetHistory
// =============================================================================

func TestGetHistory_DefaultsTo30DayWindow(t *testing.T) {
	svc, mock, close := newQuotaForTest(t, nil)
	defer close()

	userID := uuid.New()
	since := fixedDay.AddDate(0, 0, -29)
	now := time.Now()

	mock.ExpectQuery(`FROM daily_usage\s+WHERE user_id = \$1 AND date >= \$2\s+ORDER BY date`).
		WithArgs(userID, since).
		WillReturnRows(sqlmock.NewRows(usageRows).
			AddRow(int64(1), userID, since, 2, 0, 1, 0, now, now).
			AddRow(int64(2), userID, fixedDay, 0, 1, 0, 3, now, now))

	usages, err := svc.GetHistory(context.Background(), userID, 0)
	require.NoError(t, err)
	require.Len(t, usages, 2)
	require.Equal(t, since, usages[0].Date)
	require.Equal(t, fixedDay, usages[1].Date)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHistory_CapsWindowAt90Days(t *testing.T) {
	svc, mock, close := newQuotaForTest(t, nil)
	defer close()

	userID := uuid.New()
	since := fixedDay.AddDate(0, 0, -89)

	mock.ExpectQuery(`FROM daily_usage\s+WHERE user_id = \$1 AND date >= \$2`).
		WithArgs(userID, since).
		WillReturnRows(sqlmock.NewRows(usageRows))

	usages, err := svc.GetHistory(context.Background(), userID, 365)
	require.NoError(t, err)
	require.Empty(t, usages)
	require.NoError(t, mock.ExpectationsWereMet())
}
