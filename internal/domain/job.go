package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a processing job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ProcessingJob is one image-processing request from a user. The actual
// transformation is performed by an external executor; this record only
// tracks inputs, outputs, and status.
type ProcessingJob struct {
	ID     uuid.UUID
	UserID uuid.UUID

	Type   OperationType
	Status JobStatus

	InputKey  string // storage key of the uploaded source image
	OutputKey string // storage key of the processed result, empty until done

	// Settings carries operation-specific parameters (target size, watermark
	// text, ...) as opaque JSON.
	Settings json.RawMessage

	ProcessingTime *float64 // seconds, set on completion
	ErrorMessage   string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// validJobTransitions lists the allowed status transitions. Failed and
// completed are terminal.
var validJobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusProcessing},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed},
}

// TransitionTo moves the job to the given status, returning an error (and
// leaving the job unchanged) if the transition is not allowed.
func (j *ProcessingJob) TransitionTo(next JobStatus) error {
	for _, allowed := range validJobTransitions[j.Status] {
		if next == allowed {
			j.Status = next
			return nil
		}
	}
	return fmt.Errorf("cannot transition job from %q to %q", j.Status, next)
}

// IsTerminal reports whether the job has finished, successfully or not.
func (j *ProcessingJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
