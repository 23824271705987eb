package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

func setupMock(t *testing.T) (*Queries, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	q := New(db)
	closer := func() { db.Close() }
	return q, mock, closer
}

var dailyUsageRows = []string{
	"id", "user_id", "date", "background_removal_count", "image_upscaling_count",
	"text_watermark_count", "crop_resize_count", "created_at", "updated_at",
}

func TestGetOrCreateDailyUsage_CreatesOnFirstTouch(t *testing.T) {
	q, mock, close := setupMock(t)
	defer close()

	ctx := context.Background()
	userID := uuid.New()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO daily_usage \(user_id, date\)\s+VALUES \(\$1, \$2\)\s+ON CONFLICT \(user_id, date\) DO UPDATE SET user_id = excluded\.user_id`).
		WithArgs(userID, day).
		WillReturnRows(sqlmock.NewRows(dailyUsageRows).
			AddRow(int64(1), userID, day, 0, 0, 0, 0, now, now))

	usage, err := q.GetOrCreateDailyUsage(ctx, userID, day)
	require.NoError(t, err)
	require.Equal(t, userID, usage.UserID)
	require.Zero(t, usage.BackgroundRemovalCount)
	require.Zero(t, usage.ImageUpscalingCount)
	require.Zero(t, usage.TextWatermarkCount)
	require.Zero(t, usage.CropResizeCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateDailyUsage_ReturnsExistingRow(t *testing.T) {
	q, mock, close := setupMock(t)
	defer close()

	ctx := context.Background()
	userID := uuid.New()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(`ON CONFLICT \(user_id, date\)`).
		WithArgs(userID, day).
		WillReturnRows(sqlmock.NewRows(dailyUsageRows).
			AddRow(int64(7), userID, day, 3, 1, 0, 4, now, now))

	usage, err := q.GetOrCreateDailyUsage(ctx, userID, day)
	require.NoError(t, err)
	require.Equal(t, 3, usage.BackgroundRemovalCount)
	require.Equal(t, 4, usage.CropResizeCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementDailyUsage_KnownOperations(t *testing.T) {
	tests := []struct {
		op     domain.OperationType
		column string
	}{
		{domain.OpBackgroundRemoval, "background_removal_count"},
		{domain.OpImageUpscaling, "image_upscaling_count"},
		{domain.OpTextWatermark, "text_watermark_count"},
		{domain.OpCropResize, "crop_resize_count"},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			q, mock, close := setupMock(t)
			defer close()

			ctx := context.Background()
			userID := uuid.New()
			day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
			now := time.Now()

			mock.ExpectQuery(`UPDATE daily_usage\s+SET ` + tt.column + ` = ` + tt.column + ` \+ 1, updated_at = now\(\)`).
				WithArgs(userID, day).
				WillReturnRows(sqlmock.NewRows(dailyUsageRows).
					AddRow(int64(1), userID, day, 1, 0, 0, 0, now, now))

			_, err := q.IncrementDailyUsage(ctx, userID, day, tt.op)
			require.NoError(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIncrementDailyUsage_UnknownOperationTouchesRowOnly(t *testing.T) {
	q, mock, close := setupMock(t)
	defer close()

	ctx := context.Background()
	userID := uuid.New()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(`UPDATE daily_usage\s+SET updated_at = now\(\)\s+WHERE user_id = \$1 AND date = \$2`).
		WithArgs(userID, day).
		WillReturnRows(sqlmock.NewRows(dailyUsageRows).
			AddRow(int64(1), userID, day, 2, 0, 0, 5, now, now))

	usage, err := q.IncrementDailyUsage(ctx, userID, day, domain.OperationType("super-resolution"))
	require.NoError(t, err)
	require.Equal(t, 2, usage.BackgroundRemovalCount)
	require.Equal(t, 5, usage.CropResizeCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDailyUsageSince_ReturnsRowsOldestFirst(t *testing.T) {
	q, mock, close := setupMock(t)
	defer close()

	ctx := context.Background()
	userID := uuid.New()
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(`FROM daily_usage\s+WHERE user_id = \$1 AND date >= \$2\s+ORDER BY date`).
		WithArgs(userID, since).
		WillReturnRows(sqlmock.NewRows(dailyUsageRows).
			AddRow(int64(1), userID, since, 3, 0, 1, 0, now, now).
			AddRow(int64(2), userID, since.AddDate(0, 0, 4), 0, 2, 0, 6, now, now))

	usages, err := q.ListDailyUsageSince(ctx, userID, since)
	require.NoError(t, err)
	require.Len(t, usages, 2)
	require.Equal(t, since, usages[0].Date)
	require.Equal(t, 6, usages[1].CropResizeCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDailyUsageSince_EmptyWindow(t *testing.T) {
	q, mock, close := setupMock(t)
	defer close()

	ctx := context.Background()
	userID := uuid.New()
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM daily_usage\s+WHERE user_id = \$1 AND date >= \$2`).
		WithArgs(userID, since).
		WillReturnRows(sqlmock.NewRows(dailyUsageRows))

	usages, err := q.ListDailyUsageSince(ctx, userID, since)
	require.NoError(t, err)
	require.Empty(t, usages)
	require.NoError(t, mock.ExpectationsWereMet())
}
