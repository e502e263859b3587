package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobQueued, JobProcessing, true},
		{JobQueued, JobFailed, true},
		{JobQueued, JobCompleted, false},
		{JobProcessing, JobProcessing, true},
		{JobProcessing, JobCompleted, true},
		{JobProcessing, JobFailed, true},
		{JobProcessing, JobQueued, false},
		{JobCompleted, JobProcessing, false},
		{JobCompleted, JobFailed, false},
		{JobFailed, JobProcessing, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, JobQueued.IsTerminal())
	assert.False(t, JobProcessing.IsTerminal())
	assert.True(t, JobCompleted.IsTerminal())
	assert.True(t, JobFailed.IsTerminal())
}

func TestJob_Advance(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	job := &Job{ID: "j1", Status: JobQueued, CreatedAt: start, UpdatedAt: start}

	later := start.Add(time.Second)
	require.NoError(t, job.Advance(JobProcessing, 30, "Analyzing image", later))
	assert.Equal(t, JobProcessing, job.Status)
	assert.Equal(t, 30, job.Progress)
	assert.Equal(t, "Analyzing image", job.CurrentStep)
	assert.Equal(t, later, job.UpdatedAt)

	// progress never goes back and is capped at 100
	require.NoError(t, job.Advance(JobProcessing, 10, "Retrying", later))
	assert.Equal(t, 30, job.Progress)
	require.NoError(t, job.Advance(JobCompleted, 150, "Generation complete", later))
	assert.Equal(t, 100, job.Progress)

	err := job.Advance(JobProcessing, 100, "again", later)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transition completed -> processing")
	assert.Equal(t, JobCompleted, job.Status)
}
