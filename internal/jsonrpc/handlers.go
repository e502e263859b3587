package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spboyer/aemforge/internal/jobstore"
	"github.com/spboyer/aemforge/internal/models"
	"github.com/spboyer/aemforge/internal/orchestration"
	"github.com/spboyer/aemforge/internal/scoring"
)

// ProgressMethod is the notification pushed for watched jobs.
const ProgressMethod = "job.progress"

// JobService is the part of the orchestrator the RPC methods drive.
type JobService interface {
	Submit(ctx context.Context, req *models.GenerationRequest) (string, error)
	Status(ctx context.Context, id string) (*models.Job, error)
	Result(ctx context.Context, id string) (*models.JobResult, error)
	OnProgress(listener orchestration.ProgressListener) (unsubscribe func())
}

var _ JobService = (*orchestration.Orchestrator)(nil)

// HandlerContext provides shared state for method handlers.
type HandlerContext struct {
	jobs   JobService
	scorer scoring.Scorer
	logger *slog.Logger
}

// NewHandlerContext creates a new handler context. A nil scorer uses the
// default rubric without a secondary reviewer.
func NewHandlerContext(jobs JobService, scorer scoring.Scorer, logger *slog.Logger) *HandlerContext {
	if scorer == nil {
		scorer = scoring.NewEngine(nil, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HandlerContext{jobs: jobs, scorer: scorer, logger: logger}
}

// RegisterHandlers registers all job and bundle method handlers.
func RegisterHandlers(registry *MethodRegistry, hctx *HandlerContext) {
	registry.Register("job.submit", "Queue a component generation, optionally watching its progress", hctx.handleJobSubmit)
	registry.Register("job.status", "Report the status and progress of a job", hctx.handleJobStatus)
	registry.Register("job.result", "Fetch the artifact bundle and validation of a finished job", hctx.handleJobResult)
	registry.Register("bundle.score", "Validate an artifact bundle against the rubric", hctx.handleBundleScore)
}

// rpcError maps service errors onto application error codes.
func rpcError(err error) *Error {
	switch {
	case errors.Is(err, jobstore.ErrJobNotFound):
		return ErrJobNotFound(err.Error())
	case errors.Is(err, jobstore.ErrStoreUnavailable):
		return ErrStoreUnavailable(err.Error())
	case errors.Is(err, models.ErrEmptyDescription):
		return ErrInvalidParams(err.Error())
	default:
		return ErrInternalError(err.Error())
	}
}

func decodeParams(params json.RawMessage, v any) *Error {
	if len(params) == 0 {
		return ErrInvalidParams("params are required")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return ErrInvalidParams(err.Error())
	}
	return nil
}

// --- job.submit ---

// SubmitParams is a generation request. With Watch set, job.progress
// notifications are pushed over the calling connection until the job ends.
type SubmitParams struct {
	models.GenerationRequest
	Watch bool `json:"watch,omitempty"`
}

type SubmitResult struct {
	RequestID string           `json:"request_id"`
	Status    models.JobStatus `json:"status"`
}

func (h *HandlerContext) handleJobSubmit(ctx context.Context, params json.RawMessage) (any, *Error) {
	var p SubmitParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	id, err := h.jobs.Submit(ctx, &p.GenerationRequest)
	if err != nil {
		return nil, rpcError(err)
	}

	if p.Watch {
		if t, ok := TransportFrom(ctx); ok {
			h.watch(ctx, t, id)
		}
	}
	return &SubmitResult{RequestID: id, Status: models.JobQueued}, nil
}

// watch pushes progress notifications for job id until it reaches a terminal
// status, ctx ends or a write fails. The listener never blocks the job.
func (h *HandlerContext) watch(ctx context.Context, t *Transport, id string) {
	events := make(chan orchestration.ProgressEvent, 32)
	unsubscribe := h.jobs.OnProgress(func(e orchestration.ProgressEvent) {
		if e.JobID != id {
			return
		}
		select {
		case events <- e:
		default:
		}
	})

	go func() {
		defer unsubscribe()

		last := -1
		send := func(e orchestration.ProgressEvent) bool {
			if e.Progress < last || (e.Progress == last && !e.Status.IsTerminal()) {
				return true
			}
			last = e.Progress
			err := t.WriteNotification(&Notification{JSONRPC: Version, Method: ProgressMethod, Params: e})
			if err != nil {
				h.logger.Debug("progress notification failed", "job", id, "error", err)
				return false
			}
			return !e.Status.IsTerminal()
		}

		// the job may have advanced before the listener was registered
		if job, err := h.jobs.Status(ctx, id); err == nil {
			if !send(progressEvent(job)) {
				return
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-events:
				if !send(e) {
					return
				}
			}
		}
	}()
}

func progressEvent(job *models.Job) orchestration.ProgressEvent {
	return orchestration.ProgressEvent{JobID: job.ID, Status: job.Status, Progress: job.Progress, Step: job.CurrentStep}
}

// --- job.status ---

type JobParams struct {
	ID string `json:"id"`
}

func (h *HandlerContext) handleJobStatus(ctx context.Context, params json.RawMessage) (any, *Error) {
	var p JobParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.ID == "" {
		return nil, ErrInvalidParams("id is required")
	}

	job, err := h.jobs.Status(ctx, p.ID)
	if err != nil {
		return nil, rpcError(err)
	}
	return job, nil
}

// --- job.result ---

func (h *HandlerContext) handleJobResult(ctx context.Context, params json.RawMessage) (any, *Error) {
	var p JobParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.ID == "" {
		return nil, ErrInvalidParams("id is required")
	}

	res, err := h.jobs.Result(ctx, p.ID)
	if err != nil {
		return nil, rpcError(err)
	}
	if res != nil {
		return res, nil
	}

	job, err := h.jobs.Status(ctx, p.ID)
	if err != nil {
		return nil, rpcError(err)
	}
	if job.Status == models.JobFailed {
		return nil, ErrJobFailed(job.CurrentStep)
	}
	return nil, ErrJobNotReady(string(job.Status))
}

// --- bundle.score ---

type ScoreParams struct {
	Files     *models.ArtifactBundle `json:"files"`
	Secondary bool                   `json:"secondary,omitempty"`
}

func (h *HandlerContext) handleBundleScore(ctx context.Context, params json.RawMessage) (any, *Error) {
	var p ScoreParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Files == nil {
		return nil, ErrInvalidParams("files are required")
	}

	if !p.Secondary {
		return h.scorer.Score(p.Files), nil
	}
	report, err := h.scorer.ScoreWithSecondaryOpinion(ctx, p.Files)
	if errors.Is(err, scoring.ErrNoReviewer) {
		return nil, ErrInvalidParams(err.Error())
	}
	if err != nil {
		return nil, ErrReviewFailed(fmt.Sprintf("scoring bundle: %v", err))
	}
	return report, nil
}
