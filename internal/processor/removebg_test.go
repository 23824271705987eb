package processor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

// captureRecorder keeps every reported call for assertions.
type captureRecorder struct {
	calls []APICall
}

func (r *captureRecorder) RecordCall(_ context.Context, call APICall) {
	r.calls = append(r.calls, call)
}

func newRemoveBGForTest(srv *httptest.Server, recorder CallRecorder) *removeBGClient {
	return &removeBGClient{
		apiKey:   "test-key",
		endpoint: srv.URL,
		client:   srv.Client(),
		recorder: recorder,
	}
}

func TestRemoveBGClient_RecordsSuccessfulCall(t *testing.T) {
	output := testPNG(t, 8, 8)
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		w.Write(output)
	}))
	defer srv.Close()

	recorder := &captureRecorder{}
	client := newRemoveBGForTest(srv, recorder)
	userID := uuid.New()

	ctx := WithOwner(context.Background(), userID)
	res, err := client.Execute(ctx, domain.OpBackgroundRemoval, testPNG(t, 16, 16), nil)
	require.NoError(t, err)
	require.Equal(t, 8, res.ProcessedWidth)
	require.Equal(t, "test-key", gotKey)

	require.Len(t, recorder.calls, 1)
	call := recorder.calls[0]
	require.Equal(t, userID, call.UserID)
	require.Equal(t, "removebg", call.APIName)
	require.Equal(t, srv.URL, call.Endpoint)
	require.True(t, call.Success)
	require.Greater(t, call.RequestSize, int64(0))
	require.Equal(t, int64(len(output)), call.ResponseSize)
	require.Greater(t, call.Duration, time.Duration(0))
	require.Empty(t, call.ErrorMessage)
}

func TestRemoveBGClient_RecordsFailedCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	recorder := &captureRecorder{}
	client := newRemoveBGForTest(srv, recorder)
	userID := uuid.New()

	ctx := WithOwner(context.Background(), userID)
	_, err := client.Execute(ctx, domain.OpBackgroundRemoval, testPNG(t, 16, 16), nil)
	require.Error(t, err)
	require.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))

	require.Len(t, recorder.calls, 1)
	call := recorder.calls[0]
	require.Equal(t, userID, call.UserID)
	require.False(t, call.Success)
	require.Equal(t, int64(0), call.ResponseSize)
	require.Contains(t, call.ErrorMessage, "500")
}

func TestRemoveBGClient_RateLimitIsRecordedAndSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	recorder := &captureRecorder{}
	client := newRemoveBGForTest(srv, recorder)

	_, err := client.Execute(context.Background(), domain.OpBackgroundRemoval, testPNG(t, 16, 16), nil)
	require.Error(t, err)
	require.Equal(t, domain.ERATELIMIT, domain.ErrorCode(err))

	require.Len(t, recorder.calls, 1)
	require.False(t, recorder.calls[0].Success)
	// No owner on the context, the recorder still sees the call.
	require.Equal(t, uuid.Nil, recorder.calls[0].UserID)
}

func TestRemoveBGClient_NilRecorderIsSafe(t *testing.T) {
	output := testPNG(t, 4, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(output)
	}))
	defer srv.Close()

	client := newRemoveBGForTest(srv, nil)

	_, err := client.Execute(context.Background(), domain.OpBackgroundRemoval, testPNG(t, 16, 16), nil)
	require.NoError(t, err)
}
