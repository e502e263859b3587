package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/spboyer/aemforge/internal/models"
	"github.com/spboyer/aemforge/internal/reporting"
	"github.com/spboyer/aemforge/internal/scoring"
)

// Version is set at build time or defaults to dev.
var Version = "dev"

const (
	DefaultSyncTimeout = 120 * time.Second
	maxSyncTimeout     = 10 * time.Minute
	maxBodyBytes       = 4 << 20
)

// Options tune the handlers.
type Options struct {
	// SyncTimeout bounds generate-sync when the request has no timeout.
	SyncTimeout time.Duration
	// PollInterval is how often waiting handlers re-read job status.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	jobs   JobService
	scorer scoring.Scorer
	opts   Options
}

// NewHandlers creates a new Handlers.
func NewHandlers(jobs JobService, scorer scoring.Scorer, opts Options) *Handlers {
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = DefaultSyncTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handlers{jobs: jobs, scorer: scorer, opts: opts}
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("POST /api/components/generate", h.HandleGenerate)
	mux.HandleFunc("POST /api/components/generate-sync", h.HandleGenerateSync)
	mux.HandleFunc("GET /api/components/status/{id}", h.HandleStatus)
	mux.HandleFunc("GET /api/components/result/{id}", h.HandleResult)
	mux.HandleFunc("GET /api/components/result/{id}/report", h.HandleReport)
	mux.HandleFunc("GET /api/components/watch/{id}", h.HandleWatch)
	mux.HandleFunc("POST /api/validate", h.HandleValidate)
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().UTC(),
	})
}

// HandleGenerate queues a generation job and returns its id.
func (h *Handlers) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.submit(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{
		RequestID: id,
		Status:    models.JobQueued,
		Message:   "Component generation started",
		StatusURL: "/api/components/status/" + id,
	})
}

// HandleGenerateSync queues a job and waits for its result. The wait is
// bounded by the timeout query parameter (seconds or a Go duration).
func (h *Handlers) HandleGenerateSync(w http.ResponseWriter, r *http.Request) {
	timeout, err := parseTimeout(r.URL.Query().Get("timeout"), h.opts.SyncTimeout)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, ok := h.submit(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	job, err := follow(ctx, h.jobs, id, h.opts.PollInterval, func(*models.Job) error { return nil })
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{
				Error:     fmt.Sprintf("generation did not finish within %s", timeout),
				Code:      http.StatusGatewayTimeout,
				RequestID: id,
			})
			return
		}
		h.writeJobError(w, r, id, err)
		return
	}

	if job.Status == models.JobFailed {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:     job.CurrentStep,
			Code:      http.StatusInternalServerError,
			RequestID: id,
		})
		return
	}

	res, err := h.jobs.Result(r.Context(), id)
	if err != nil {
		h.writeJobError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleStatus returns the status record of a job.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := h.jobs.Status(r.Context(), id)
	if err != nil {
		h.writeJobError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// HandleResult returns the result of a completed job, or 409 while the job
// has not completed.
func (h *Handlers) HandleResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, ok := h.result(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleReport renders the result of a completed job as an HTML page.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, ok := h.result(w, r, id)
	if !ok {
		return
	}
	page, err := reporting.HTML(res)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page) //nolint:errcheck
}

// HandleValidate scores a posted bundle. With ?secondary=true the rubric
// report is merged with the secondary reviewer's opinion.
func (h *Handlers) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Files == nil {
		writeError(w, http.StatusBadRequest, "files are required")
		return
	}

	secondary, _ := strconv.ParseBool(r.URL.Query().Get("secondary"))
	if !secondary {
		writeJSON(w, http.StatusOK, h.scorer.Score(req.Files))
		return
	}

	report, err := h.scorer.ScoreWithSecondaryOpinion(r.Context(), req.Files)
	switch {
	case errors.Is(err, scoring.ErrNoReviewer):
		writeError(w, http.StatusNotImplemented, err.Error())
	case err != nil:
		h.opts.Logger.ErrorContext(r.Context(), "Secondary review failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req models.GenerationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	id, err := h.jobs.Submit(r.Context(), &req)
	switch {
	case errors.Is(err, models.ErrEmptyDescription):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return "", false
	case err != nil:
		h.writeJobError(w, r, "", err)
		return "", false
	}
	return id, true
}

func (h *Handlers) result(w http.ResponseWriter, r *http.Request, id string) (*models.JobResult, bool) {
	res, err := h.jobs.Result(r.Context(), id)
	if err != nil {
		h.writeJobError(w, r, id, err)
		return nil, false
	}
	if res != nil {
		return res, true
	}

	status := "unknown"
	if job, err := h.jobs.Status(r.Context(), id); err == nil {
		status = string(job.Status)
	}
	writeJSON(w, http.StatusConflict, ErrorResponse{
		Error:     "Generation status: " + status,
		Code:      http.StatusConflict,
		RequestID: id,
	})
	return nil, false
}

func (h *Handlers) writeJobError(w http.ResponseWriter, r *http.Request, id string, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		h.opts.Logger.ErrorContext(r.Context(), "Job request failed", "job", id, "error", err)
	}
	writeJSON(w, code, ErrorResponse{Error: err.Error(), Code: code, RequestID: id})
}

func parseTimeout(v string, fallback time.Duration) (time.Duration, error) {
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		secs, serr := strconv.Atoi(v)
		if serr != nil {
			return 0, fmt.Errorf("invalid timeout %q", v)
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q", v)
	}
	return min(d, maxSyncTimeout), nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}
