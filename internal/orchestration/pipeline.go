package orchestration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spboyer/aemforge/internal/agents"
	"github.com/spboyer/aemforge/internal/cache"
	"github.com/spboyer/aemforge/internal/models"
	"github.com/spboyer/aemforge/internal/repair"
	"golang.org/x/sync/errgroup"
)

// process runs the four pipeline stages for job and returns the result to
// store. Every stage transition is recorded before the stage starts.
func (o *Orchestrator) process(ctx context.Context, job *models.Job) (*models.JobResult, error) {
	req := &job.Input
	log := o.logger.With("job", job.ID)

	if err := o.advance(ctx, job, models.JobProcessing, progressRequirements, StepRequirements); err != nil {
		return nil, err
	}
	requirements, err := o.analyzeRequirements(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Debug("Requirements extracted", "component", requirements.ComponentMetadata.Name, "fields", len(requirements.Fields))

	var visual *models.VisualHints
	if req.ImageURL == "" {
		if err := o.advance(ctx, job, models.JobProcessing, progressImage, StepSkipImage); err != nil {
			return nil, err
		}
	} else {
		if err := o.advance(ctx, job, models.JobProcessing, progressImage, StepImage); err != nil {
			return nil, err
		}
		if visual, err = o.analyzeImage(ctx, req.ImageURL); err != nil {
			return nil, err
		}
	}

	if err := o.advance(ctx, job, models.JobProcessing, progressGenerate, StepGenerate); err != nil {
		return nil, err
	}
	in := agents.ComponentInput{
		Identity:     identityFor(req, requirements),
		Request:      req,
		Requirements: requirements,
		Visual:       visual,
	}
	bundle, err := o.generate(ctx, in, log)
	if err != nil {
		return nil, err
	}

	var report *models.ValidationReport
	if models.Enabled(req.Options.Validate) {
		if err := o.advance(ctx, job, models.JobProcessing, progressValidate, StepValidate); err != nil {
			return nil, err
		}
		if report, err = o.validate(ctx, bundle, models.Enabled(req.Options.SecondaryOpinion)); err != nil {
			return nil, err
		}
	} else if err := o.advance(ctx, job, models.JobProcessing, progressValidate, StepSkipValidate); err != nil {
		return nil, err
	}

	componentType := req.ComponentType
	if componentType == "" {
		componentType = requirements.ComponentMetadata.Type
	}

	now := o.now()
	return &models.JobResult{
		JobID:         job.ID,
		Status:        models.JobCompleted,
		ComponentName: in.Identity.Name,
		ComponentType: componentType,
		Bundle:        bundle,
		Validation:    report,
		Metadata: models.ResultMetadata{
			Requirements: requirements,
			Visual:       visual,
			GeneratedAt:  now,
		},
		CreatedAt: now,
	}, nil
}

func (o *Orchestrator) analyzeRequirements(ctx context.Context, req *models.GenerationRequest) (*models.Requirements, error) {
	stage := agents.RequirementsStage{}
	prompt, err := stage.PromptText(req)
	if err != nil {
		return nil, err
	}
	key := cache.Key("req_analysis", prompt)
	return cache.Memoize(ctx, o.cache, key, o.reqTTL, func(ctx context.Context) (*models.Requirements, error) {
		return agents.Invoke(ctx, o.generator, o.policy, stage, req)
	})
}

func (o *Orchestrator) analyzeImage(ctx context.Context, imageURL string) (*models.VisualHints, error) {
	key := cache.Key("img_analysis", imageURL)
	return cache.Memoize(ctx, o.cache, key, o.visualTTL, func(ctx context.Context) (*models.VisualHints, error) {
		return agents.Invoke(ctx, o.generator, o.policy, agents.VisualStage{}, imageURL)
	})
}

// generate produces the core bundle and, when requested, the clientlib
// concurrently, then repairs the combined bundle.
func (o *Orchestrator) generate(ctx context.Context, in agents.ComponentInput, log *slog.Logger) (*models.ArtifactBundle, error) {
	var (
		bundle    *models.ArtifactBundle
		clientlib *agents.Clientlib
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bundle, err = agents.Invoke(gctx, o.generator, o.policy, agents.ComponentStage{}, in)
		return err
	})
	if models.Enabled(in.Request.Options.IncludeClientlibs) {
		g.Go(func() error {
			var err error
			clientlib, err = agents.Invoke(gctx, o.generator, o.policy, agents.ClientlibStage{}, in)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if clientlib != nil {
		clientlib.ApplyTo(bundle)
	}

	repaired, notices := repair.Apply(bundle, in.Identity)
	for _, n := range notices {
		log.Info("Repaired generated artifact", "artifact", n.Artifact, "kind", n.Kind, "message", n.Message)
	}
	return repaired, nil
}

func (o *Orchestrator) validate(ctx context.Context, bundle *models.ArtifactBundle, secondary bool) (*models.ValidationReport, error) {
	if !secondary {
		return o.scorer.Score(bundle), nil
	}
	report, err := o.scorer.ScoreWithSecondaryOpinion(ctx, bundle)
	if err != nil {
		return nil, fmt.Errorf("validating component: %w", err)
	}
	return report, nil
}

// identityFor derives the component identity from the extracted requirements,
// falling back to the request for anything the analysis left out.
func identityFor(req *models.GenerationRequest, r *models.Requirements) repair.Identity {
	name := r.ComponentMetadata.Name
	if name == "" {
		name = req.ComponentType
	}
	id := repair.NewIdentity(name, req.Options.AppID, req.Options.PackageName, req.Options.ComponentFolder)
	if r.ComponentMetadata.DisplayName != "" {
		id.DisplayName = r.ComponentMetadata.DisplayName
	}
	id.Group = req.ComponentGroup
	if r.ComponentMetadata.Group != "" && req.ComponentGroup == models.DefaultComponentGroup {
		id.Group = r.ComponentMetadata.Group
	}
	return id
}
