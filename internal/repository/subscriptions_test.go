package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

var subscriptionRows = []string{
	"id", "user_id", "plan_id", "stripe_subscription_id", "stripe_customer_id",
	"status", "current_period_start", "current_period_end", "created_at", "updated_at", "cancelled_at",
}

func TestGetActiveSubscription_FiltersOnStatusOnly(t *testing.T) {
	q, mock, close := setupMock(t)
	defer close()

	ctx := context.Background()
	userID := uuid.New()
	subID := uuid.New()
	planID := uuid.New()
	now := time.Now()

	// The period window is deliberately absent from the WHERE clause; a row
	// whose period already ended still comes back as long as its status says
	// active.
	mock.ExpectQuery(`FROM subscriptions\s+WHERE user_id = \$1 AND status = \$2\s+ORDER BY current_period_start DESC\s+LIMIT 1`).
		WithArgs(userID, domain.SubscriptionStatusActive).
		WillReturnRows(sqlmock.NewRows(subscriptionRows).
			AddRow(subID, userID, planID, "sub_123", "cus_123", "active",
				now.AddDate(0, -2, 0), now.AddDate(0, -1, 0), now, now, nil))

	sub, err := q.GetActiveSubscription(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, subID, sub.ID)
	require.Equal(t, planID, sub.PlanID)
	require.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	require.True(t, sub.CurrentPeriodEnd.Before(now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveSubscription_NoSubscription(t *testing.T) {
	q, mock, close := setupMock(t)
	defer close()

	ctx := context.Background()
	userID := uuid.New()

	mock.ExpectQuery(`FROM subscriptions\s+WHERE user_id = \$1 AND status = \$2`).
		WithArgs(userID, domain.SubscriptionStatusActive).
		WillReturnError(sql.ErrNoRows)

	_, err := q.GetActiveSubscription(ctx, userID)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSubscriptionStatus(t *testing.T) {
	q, mock, close := setupMock(t)
	defer close()

	ctx := context.Background()
	subID := uuid.New()
	now := time.Now()
	cancelled := now

	mock.ExpectExec(`UPDATE subscriptions\s+SET status = \$2`).
		WithArgs(subID, domain.SubscriptionStatusCancelled, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := q.UpdateSubscriptionStatus(ctx, UpdateSubscriptionStatusParams{
		ID:                 subID,
		Status:             domain.SubscriptionStatusCancelled,
		CurrentPeriodStart: now.AddDate(0, -1, 0),
		CurrentPeriodEnd:   now,
		CancelledAt:        &cancelled,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSubscriptionStatus_MissingRow(t *testing.T) {
	q, mock, close := setupMock(t)
	defer close()

	ctx := context.Background()
	subID := uuid.New()
	now := time.Now()

	mock.ExpectExec(`UPDATE subscriptions\s+SET status = \$2`).
		WithArgs(subID, domain.SubscriptionStatusActive, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := q.UpdateSubscriptionStatus(ctx, UpdateSubscriptionStatusParams{
		ID:                 subID,
		Status:             domain.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
