package processor

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// APICall describes one request to an external processing API.
type APICall struct {
	UserID       uuid.UUID
	APIName      string
	Endpoint     string
	RequestSize  int64
	ResponseSize int64
	Duration     time.Duration
	Success      bool
	ErrorMessage string
}

// CallRecorder receives a record of each external API call for cost
// monitoring. Implementations must swallow their own failures: recording
// never fails or blocks the processing pipeline.
type CallRecorder interface {
	RecordCall(ctx context.Context, call APICall)
}

type contextKey int

const ownerContextKey contextKey = 0

// WithOwner tags the context with the user a processing request belongs
// to, so external API calls made underneath can be attributed.
func WithOwner(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerContextKey, userID)
}

// Owner returns the user tagged by WithOwner, or uuid.Nil.
func Owner(ctx context.Context) uuid.UUID {
	userID, ok := ctx.Value(ownerContextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return userID
}
