package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/require"

	"github.com/sami8890/Sam-pixels/internal/domain"
	"github.com/sami8890/Sam-pixels/internal/repository"
)

var (
	subRows = []string{
		"id", "user_id", "plan_id", "stripe_subscription_id", "stripe_customer_id",
		"status", "current_period_start", "current_period_end", "created_at", "updated_at", "cancelled_at",
	}
	planRows = []string{
		"id", "name", "display_name", "description", "price_cents", "billing_period",
		"stripe_price_id", "monthly_processing_limit", "max_file_size_mb", "max_resolution",
		"capabilities", "is_active", "created_at", "updated_at",
	}
)

func newEntitlementsForTest(t *testing.T) (*entitlementService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	svc := &entitlementService{
		queries: repository.New(db),
		logger:  testLogger(),
		plans:   cache.New(planCacheTTL, planCacheCleanup),
	}
	return svc, mock, func() { db.Close() }
}

func expectActiveSub(mock sqlmock.Sqlmock, userID, subID, planID uuid.UUID) {
	now := time.Now()
	mock.ExpectQuery(`FROM subscriptions\s+WHERE user_id = \$1 AND status = \$2`).
		WithArgs(userID, domain.SubscriptionStatusActive).
		WillReturnRows(sqlmock.NewRows(subRows).
			AddRow(subID, userID, planID, "sub_123", "cus_123", "active",
				now, now.AddDate(0, 1, 0), now, now, nil))
}

func expectPlan(mock sqlmock.Sqlmock, planID uuid.UUID, limit interface{}) {
	now := time.Now()
	mock.ExpectQuery(`FROM subscription_plans WHERE id = \$1`).
		WithArgs(planID).
		WillReturnRows(sqlmock.NewRows(planRows).
			AddRow(planID, "pro", "Pro", "", int64(2499), "monthly",
				"price_123", limit, 25, "8192x8192", int64(63), true, now, now))
}

func TestActiveSubscription_NoneMeansFreeTier(t *testing.T) {
	svc, mock, close := newEntitlementsForTest(t)
	defer close()

	userID := uuid.New()
	mock.ExpectQuery(`FROM subscriptions\s+WHERE user_id = \$1 AND status = \$2`).
		WithArgs(userID, domain.SubscriptionStatusActive).
		WillReturnError(sql.ErrNoRows)

	sub, err := svc.ActiveSubscription(context.Background(), userID)
	require.NoError(t, err)
	require.Nil(t, sub)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveSubscription_PopulatesPlan(t *testing.T) {
	svc, mock, close := newEntitlementsForTest(t)
	defer close()

	userID := uuid.New()
	subID := uuid.New()
	planID := uuid.New()

	expectActiveSub(mock, userID, subID, planID)
	expectPlan(mock, planID, int64(500))

	sub, err := svc.ActiveSubscription(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	require.Equal(t, subID, sub.ID)
	require.NotNil(t, sub.Plan)
	require.Equal(t, domain.PlanPro, sub.Plan.Name)
	require.NotNil(t, sub.Plan.MonthlyProcessingLimit)
	require.Equal(t, 500, *sub.Plan.MonthlyProcessingLimit)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveSubscription_MissingPlanIsInternalError(t *testing.T) {
	svc, mock, close := newEntitlementsForTest(t)
	defer close()

	userID := uuid.New()
	planID := uuid.New()

	expectActiveSub(mock, userID, uuid.New(), planID)
	mock.ExpectQuery(`FROM subscription_plans WHERE id = \$1`).
		WithArgs(planID).
		WillReturnError(sql.ErrNoRows)

	// A paying user must never be silently downgraded to free limits.
	_, err := svc.ActiveSubscription(context.Background(), userID)
	require.Error(t, err)
	require.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanByID_CachesPlanRows(t *testing.T) {
	svc, mock, close := newEntitlementsForTest(t)
	defer close()

	planID := uuid.New()
	// One query expectation serves two calls.
	expectPlan(mock, planID, nil)

	first, err := svc.PlanByID(context.Background(), planID)
	require.NoError(t, err)
	require.Nil(t, first.MonthlyProcessingLimit)

	second, err := svc.PlanByID(context.Background(), planID)
	require.NoError(t, err)
	require.Equal(t, first.Name, second.Name)

	require.NoError(t, mock.ExpectationsWereMet())
}
