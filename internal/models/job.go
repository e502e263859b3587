package models

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether a job may move from s to next.
// Processing may repeat so that each stage can record its own progress.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobQueued:
		return next == JobProcessing || next == JobFailed
	case JobProcessing:
		return next == JobProcessing || next == JobCompleted || next == JobFailed
	default:
		return false
	}
}

// Job is the status record of one generation request.
type Job struct {
	ID          string            `json:"request_id"`
	Input       GenerationRequest `json:"input"`
	Status      JobStatus         `json:"status"`
	Progress    int               `json:"progress"`
	CurrentStep string            `json:"current_step"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Advance moves the job to the given state, enforcing the lifecycle and
// keeping progress non-decreasing.
func (j *Job) Advance(next JobStatus, progress int, step string, now time.Time) error {
	if !j.Status.CanTransition(next) {
		return fmt.Errorf("job %s: invalid transition %s -> %s", j.ID, j.Status, next)
	}
	if progress < j.Progress {
		progress = j.Progress
	}
	if progress > 100 {
		progress = 100
	}
	j.Status = next
	j.Progress = progress
	j.CurrentStep = step
	j.UpdatedAt = now
	return nil
}

// JobResult is persisted once a job completes.
type JobResult struct {
	JobID         string            `json:"request_id"`
	Status        JobStatus         `json:"status"`
	ComponentName string            `json:"component_name"`
	ComponentType string            `json:"component_type"`
	Bundle        *ArtifactBundle   `json:"files"`
	Validation    *ValidationReport `json:"validation,omitempty"`
	Metadata      ResultMetadata    `json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ResultMetadata echoes the intermediate structured output of the pipeline.
type ResultMetadata struct {
	Requirements *Requirements `json:"requirements,omitempty"`
	Visual       *VisualHints  `json:"extracted_code,omitempty"`
	GeneratedAt  time.Time     `json:"generation_time"`
}
