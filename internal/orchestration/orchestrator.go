// Package orchestration runs generation jobs through the staged pipeline and
// records their progress in a job store.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spboyer/aemforge/internal/agents"
	"github.com/spboyer/aemforge/internal/cache"
	"github.com/spboyer/aemforge/internal/jobstore"
	"github.com/spboyer/aemforge/internal/models"
	"github.com/spboyer/aemforge/internal/retry"
	"github.com/spboyer/aemforge/internal/scoring"
)

// Cache TTLs of the memoized analysis stages.
const (
	RequirementsTTL = time.Hour
	VisualTTL       = 2 * time.Hour
)

// Step labels recorded in Job.CurrentStep.
const (
	StepQueued       = "Waiting in queue"
	StepRequirements = "Analyzing requirements"
	StepImage        = "Analyzing image"
	StepSkipImage    = "Skipping image analysis"
	StepGenerate     = "Generating component"
	StepValidate     = "Validating component"
	StepSkipValidate = "Skipping validation"
	StepComplete     = "Generation complete"
)

const (
	progressQueued       = 0
	progressRequirements = 10
	progressImage        = 30
	progressGenerate     = 50
	progressValidate     = 80
	progressCompleted    = 100
)

// ProgressEvent is emitted after every successful status write.
type ProgressEvent struct {
	JobID    string           `json:"request_id"`
	Status   models.JobStatus `json:"status"`
	Progress int              `json:"progress"`
	Step     string           `json:"current_step"`
}

// ProgressListener receives progress updates. Listeners run on the job's
// goroutine and must not block.
type ProgressListener func(event ProgressEvent)

// Defaults fill blank identity settings of submitted requests.
type Defaults struct {
	Options          models.GenerationOptions
	ProjectNamespace string
	ComponentGroup   string
}

// Orchestrator accepts generation requests and runs each as a background job.
type Orchestrator struct {
	store     jobstore.Store
	generator agents.Generator

	cache      *cache.Cache
	reqTTL     time.Duration
	visualTTL  time.Duration
	policy     retry.Policy
	scorer     scoring.Scorer
	logger     *slog.Logger
	jobTimeout time.Duration
	now        func() time.Time
	newID      func() string
	defaults   Defaults

	wg sync.WaitGroup

	progressMu   sync.Mutex
	listeners    map[int]ProgressListener
	nextListener int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache memoizes the analysis stages. Without it every job calls the
// generator for every stage.
func WithCache(c *cache.Cache) Option {
	return func(o *Orchestrator) {
		o.cache = c
	}
}

// WithCacheTTLs overrides RequirementsTTL and VisualTTL. Zero keeps the
// default.
func WithCacheTTLs(requirements, visual time.Duration) Option {
	return func(o *Orchestrator) {
		if requirements > 0 {
			o.reqTTL = requirements
		}
		if visual > 0 {
			o.visualTTL = visual
		}
	}
}

// WithRetryPolicy sets the backoff policy of generator calls.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithScorer replaces the default scoring engine.
func WithScorer(s scoring.Scorer) Option {
	return func(o *Orchestrator) {
		o.scorer = s
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithJobTimeout bounds the run time of each job. Zero means unbounded.
func WithJobTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.jobTimeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithIDGenerator replaces uuid job IDs; tests use it for stable IDs.
func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) {
		o.newID = newID
	}
}

func WithDefaults(d Defaults) Option {
	return func(o *Orchestrator) {
		o.defaults = d
	}
}

// New creates an orchestrator. Unless WithScorer is given, validation uses
// the default rubric with generator as the secondary reviewer.
func New(store jobstore.Store, generator agents.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		generator: generator,
		reqTTL:    RequirementsTTL,
		visualTTL: VisualTTL,
		policy:    retry.DefaultPolicy(),
		logger:    slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
		listeners: map[int]ProgressListener{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.scorer == nil {
		o.scorer = scoring.NewEngine(nil, &agents.Reviewer{Generator: generator, Policy: o.policy})
	}
	return o
}

// Submit validates req, records a queued job and starts processing it in the
// background. It returns as soon as the queued status is stored; the job
// keeps running after ctx is canceled.
func (o *Orchestrator) Submit(ctx context.Context, req *models.GenerationRequest) (string, error) {
	if req == nil {
		return "", models.ErrEmptyDescription
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	input := *req
	input.Fields = append([]models.ComponentField(nil), req.Fields...)
	input.ApplyDefaults(o.defaults.Options, o.defaults.ProjectNamespace, o.defaults.ComponentGroup)

	now := o.now()
	job := &models.Job{
		ID:          o.newID(),
		Input:       input,
		Status:      models.JobQueued,
		Progress:    progressQueued,
		CurrentStep: StepQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.store.PutStatus(ctx, job); err != nil {
		return "", fmt.Errorf("recording job: %w", err)
	}
	o.notify(job)

	o.logger.Info("Job submitted", "job", job.ID, "componentType", input.ComponentType, "hasImage", input.ImageURL != "")

	jobCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go o.run(jobCtx, job)

	return job.ID, nil
}

// Status returns the current status record of a job.
func (o *Orchestrator) Status(ctx context.Context, id string) (*models.Job, error) {
	return o.store.GetStatus(ctx, id)
}

// Result returns the result of a completed job. It returns nil without an
// error while the job is still running, and jobstore.ErrJobNotFound when
// neither a status nor a result exists.
func (o *Orchestrator) Result(ctx context.Context, id string) (*models.JobResult, error) {
	res, err := o.store.GetResult(ctx, id)
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}
	if _, err := o.store.GetStatus(ctx, id); err != nil {
		return nil, err
	}
	return nil, nil
}

// Wait blocks until every submitted job has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// WaitContext is Wait bounded by ctx.
func (o *Orchestrator) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnProgress registers listener and returns a function that removes it.
func (o *Orchestrator) OnProgress(listener ProgressListener) (unsubscribe func()) {
	o.progressMu.Lock()
	defer o.progressMu.Unlock()

	id := o.nextListener
	o.nextListener++
	o.listeners[id] = listener

	var once sync.Once
	return func() {
		once.Do(func() {
			o.progressMu.Lock()
			defer o.progressMu.Unlock()
			delete(o.listeners, id)
		})
	}
}

func (o *Orchestrator) notify(job *models.Job) {
	o.progressMu.Lock()
	listeners := make([]ProgressListener, 0, len(o.listeners))
	for _, l := range o.listeners {
		listeners = append(listeners, l)
	}
	o.progressMu.Unlock()

	event := ProgressEvent{JobID: job.ID, Status: job.Status, Progress: job.Progress, Step: job.CurrentStep}
	for _, listener := range listeners {
		listener(event)
	}
}

// advance records a status transition and notifies listeners.
func (o *Orchestrator) advance(ctx context.Context, job *models.Job, status models.JobStatus, progress int, step string) error {
	next := *job
	if err := next.Advance(status, progress, step, o.now()); err != nil {
		return err
	}
	if err := o.store.PutStatus(ctx, &next); err != nil {
		return fmt.Errorf("recording progress: %w", err)
	}
	*job = next
	o.notify(job)
	return nil
}

func (o *Orchestrator) run(ctx context.Context, job *models.Job) {
	defer o.wg.Done()

	if o.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.jobTimeout)
		defer cancel()
	}

	start := o.now()
	defer func() {
		if r := recover(); r != nil {
			o.fail(ctx, job, fmt.Errorf("internal error: %v", r))
		}
	}()

	result, err := o.process(ctx, job)
	if err != nil {
		o.fail(ctx, job, err)
		return
	}

	if err := o.store.PutResult(ctx, result); err != nil {
		o.fail(ctx, job, fmt.Errorf("recording result: %w", err))
		return
	}
	if err := o.advance(ctx, job, models.JobCompleted, progressCompleted, StepComplete); err != nil {
		o.logger.Error("Failed to record completion", "job", job.ID, "error", err)
		return
	}

	attrs := []any{"job", job.ID, "component", result.ComponentName, "duration", o.now().Sub(start)}
	if result.Validation != nil {
		attrs = append(attrs, "score", result.Validation.Score, "validation", result.Validation.Status)
	}
	o.logger.Info("Job completed", attrs...)
}

// fail records the terminal failed status. Progress stays where the job
// stopped and the error text becomes the current step.
func (o *Orchestrator) fail(ctx context.Context, job *models.Job, cause error) {
	o.logger.Error("Job failed", "job", job.ID, "progress", job.Progress, "error", cause)

	var invalid *agents.InvalidResponseError
	if errors.As(cause, &invalid) {
		o.logger.Debug("Unparseable generator output", "job", job.ID, "stage", invalid.Stage, "raw", invalid.Raw)
	}

	// the job context may have expired; the failure must still be recorded
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.advance(writeCtx, job, models.JobFailed, job.Progress, cause.Error()); err != nil {
		o.logger.Error("Failed to record job failure", "job", job.ID, "error", err)
	}
}
