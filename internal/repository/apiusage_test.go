package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var apiUsageRows = []string{
	"id", "user_id", "api_name", "endpoint", "request_size", "response_size",
	"processing_time_ms", "success", "error_message", "created_at",
}

func TestCreateAPIUsage_RoundsDurationToMilliseconds(t *testing.T) {
	q, mock, close := setupMock(t)
	defer close()

	ctx := context.Background()
	userID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO api_usage\s+\(id, user_id, api_name, endpoint, request_size, response_size,\s+processing_time_ms, success, error_message\)`).
		WithArgs(sqlmock.AnyArg(), userID, "removebg", "https://api.remove.bg/v1.0/removebg",
			int64(2048), int64(512), int64(1432), true, "").
		WillReturnRows(sqlmock.NewRows(apiUsageRows).
			AddRow(uuid.New(), userID, "removebg", "https://api.remove.bg/v1.0/removebg",
				int64(2048), int64(512), int64(1432), true, "", now))

	usage, err := q.CreateAPIUsage(ctx, CreateAPIUsageParams{
		UserID:         userID,
		APIName:        "removebg",
		Endpoint:       "https://api.remove.bg/v1.0/removebg",
		RequestSize:    2048,
		ResponseSize:   512,
		ProcessingTime: 1432*time.Millisecond + 700*time.Microsecond,
		Success:        true,
	})
	require.NoError(t, err)
	require.Equal(t, userID, usage.UserID)
	require.Equal(t, 1432*time.Millisecond, usage.ProcessingTime)
	require.True(t, usage.Success)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAPIUsage_PersistsFailureDetails(t *testing.T) {
	q, mock, close := setupMock(t)
	defer close()

	ctx := context.Background()
	userID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO api_usage`).
		WithArgs(sqlmock.AnyArg(), userID, "removebg", "https://api.remove.bg/v1.0/removebg",
			int64(4096), int64(0), int64(250), false, "rate limited (status 429)").
		WillReturnRows(sqlmock.NewRows(apiUsageRows).
			AddRow(uuid.New(), userID, "removebg", "https://api.remove.bg/v1.0/removebg",
				int64(4096), int64(0), int64(250), false, "rate limited (status 429)", now))

	usage, err := q.CreateAPIUsage(ctx, CreateAPIUsageParams{
		UserID:         userID,
		APIName:        "removebg",
		Endpoint:       "https://api.remove.bg/v1.0/removebg",
		RequestSize:    4096,
		ProcessingTime: 250 * time.Millisecond,
		Success:        false,
		ErrorMessage:   "rate limited (status 429)",
	})
	require.NoError(t, err)
	require.False(t, usage.Success)
	require.Equal(t, "rate limited (status 429)", usage.ErrorMessage)
	require.NoError(t, mock.ExpectationsWereMet())
}
