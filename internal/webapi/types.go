package webapi

import (
	"time"

	"github.com/spboyer/aemforge/internal/models"
)

// SubmitResponse is returned when a generation job is accepted.
type SubmitResponse struct {
	RequestID string           `json:"request_id"`
	Status    models.JobStatus `json:"status"`
	Message   string           `json:"message"`
	StatusURL string           `json:"status_url"`
}

// ValidateRequest carries a bundle to score.
type ValidateRequest struct {
	Files *models.ArtifactBundle `json:"files"`
}

// WatchMessage is one frame of the job watch stream.
type WatchMessage struct {
	Type string `json:"type"`
	// Job is set for "progress" frames.
	Job   *models.Job `json:"job,omitempty"`
	Error string      `json:"error,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
	// RequestID is set when the error concerns a known job.
	RequestID string `json:"request_id,omitempty"`
}
