package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIUsage is one recorded call to an external processing API, kept for
// cost monitoring. Rows are append-only; they are never read on the
// request path.
type APIUsage struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	APIName string // provider identifier, e.g. "removebg"

	Endpoint     string
	RequestSize  int64 // bytes sent
	ResponseSize int64 // bytes received, 0 when the call failed early

	ProcessingTime time.Duration
	Success        bool
	ErrorMessage   string

	CreatedAt time.Time
}
