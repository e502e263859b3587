package webapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spboyer/aemforge/internal/jobstore"
	"github.com/spboyer/aemforge/internal/models"
	"github.com/spboyer/aemforge/internal/orchestration"
)

// JobService is the part of the orchestrator the API drives.
// *orchestration.Orchestrator implements it.
type JobService interface {
	Submit(ctx context.Context, req *models.GenerationRequest) (string, error)
	Status(ctx context.Context, id string) (*models.Job, error)
	Result(ctx context.Context, id string) (*models.JobResult, error)
	OnProgress(listener orchestration.ProgressListener) (unsubscribe func())
}

var _ JobService = (*orchestration.Orchestrator)(nil)

// follow reports the state of job id to emit until the job reaches a
// terminal status or ctx ends. Listener events are the primary source;
// polling every interval covers events dropped by a slow consumer.
func follow(ctx context.Context, jobs JobService, id string, interval time.Duration, emit func(*models.Job) error) (*models.Job, error) {
	events := make(chan orchestration.ProgressEvent, 32)
	unsubscribe := jobs.OnProgress(func(e orchestration.ProgressEvent) {
		if e.JobID != id {
			return
		}
		select {
		case events <- e:
		default:
		}
	})
	defer unsubscribe()

	job, err := jobs.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := emit(job); err != nil {
		return job, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !job.Status.IsTerminal() {
		next := *job
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case e := <-events:
			next.Status, next.Progress, next.CurrentStep = e.Status, e.Progress, e.Step
		case <-ticker.C:
			polled, err := jobs.Status(ctx, id)
			if err != nil {
				return job, err
			}
			next = *polled
		}
		if !advanced(job, &next) {
			continue
		}
		job = &next
		if err := emit(job); err != nil {
			return job, err
		}
	}
	return job, nil
}

// advanced reports whether next is newer than prev. Progress never goes
// backwards, so stale or duplicate snapshots are dropped.
func advanced(prev, next *models.Job) bool {
	if prev.Status.IsTerminal() || next.Progress < prev.Progress {
		return false
	}
	return next.Status != prev.Status || next.Progress != prev.Progress || next.CurrentStep != prev.CurrentStep
}

// statusCode maps job lookup errors to HTTP status codes.
func statusCode(err error) int {
	switch {
	case errors.Is(err, jobstore.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobstore.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
