package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessingJob_TransitionTo(t *testing.T) {
	tests := []struct {
		name      string
		from      JobStatus
		to        JobStatus
		wantErr   bool
		wantState JobStatus
	}{
		{"pending to processing", JobStatusPending, JobStatusProcessing, false, JobStatusProcessing},
		{"processing to completed", JobStatusProcessing, JobStatusCompleted, false, JobStatusCompleted},
		{"processing to failed", JobStatusProcessing, JobStatusFailed, false, JobStatusFailed},

		{"pending to completed", JobStatusPending, JobStatusCompleted, true, JobStatusPending},
		{"pending to failed", JobStatusPending, JobStatusFailed, true, JobStatusPending},
		{"completed is terminal", JobStatusCompleted, JobStatusProcessing, true, JobStatusCompleted},
		{"failed is terminal", JobStatusFailed, JobStatusPending, true, JobStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &ProcessingJob{Status: tt.from}
			err := job.TransitionTo(tt.to)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "cannot transition")
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, job.Status)
		})
	}
}

func TestProcessingJob_IsTerminal(t *testing.T) {
	assert.False(t, (&ProcessingJob{Status: JobStatusPending}).IsTerminal())
	assert.False(t, (&ProcessingJob{Status: JobStatusProcessing}).IsTerminal())
	assert.True(t, (&ProcessingJob{Status: JobStatusCompleted}).IsTerminal())
	assert.True(t, (&ProcessingJob{Status: JobStatusFailed}).IsTerminal())
}
