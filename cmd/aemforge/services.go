package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spboyer/aemforge/internal/agents"
	"github.com/spboyer/aemforge/internal/cache"
	"github.com/spboyer/aemforge/internal/jobstore"
	"github.com/spboyer/aemforge/internal/kvstore"
	"github.com/spboyer/aemforge/internal/models"
	"github.com/spboyer/aemforge/internal/orchestration"
	"github.com/spboyer/aemforge/internal/projectconfig"
	"github.com/spboyer/aemforge/internal/retry"
	"github.com/spboyer/aemforge/internal/scoring"
)

// services holds what is built from the project configuration. Every
// command builds only what it needs and closes it when done.
type services struct {
	cfg       *projectconfig.ProjectConfig
	kv        kvstore.Store
	jobs      *jobstore.KVStore
	cache     *cache.Cache
	generator agents.Generator
	scorer    *scoring.Engine
	orch      *orchestration.Orchestrator
}

type serviceOptions struct {
	// generator builds the configured engine; commands that only read the
	// store skip it.
	generator bool
	// engine overrides cfg.Agent.Engine when set.
	engine string
}

func newServices(ctx context.Context, cfg *projectconfig.ProjectConfig, opts serviceOptions) (*services, error) {
	kv, err := newKVStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r := &services{
		cfg: cfg,
		kv:  kv,
		jobs: jobstore.New(kv, jobstore.Config{
			StatusPrefix: cfg.Store.StatusPrefix,
			ResultPrefix: cfg.Store.ResultPrefix,
			StatusTTL:    cfg.Store.StatusTTL,
			ResultTTL:    cfg.Store.ResultTTL,
		}),
		cache: cache.New(kv, cfg.Cache.Prefix),
	}

	policy := retryPolicy(cfg)
	if opts.generator {
		engine := cfg.Agent.Engine
		if opts.engine != "" {
			engine = opts.engine
		}
		if r.generator, err = newGenerator(engine, cfg); err != nil {
			r.Close() //nolint:errcheck
			return nil, err
		}
	}

	var reviewer scoring.Reviewer
	if r.generator != nil {
		reviewer = &agents.Reviewer{Generator: r.generator, Policy: policy}
	}
	if r.scorer, err = newScorer(cfg, reviewer); err != nil {
		r.Close() //nolint:errcheck
		return nil, err
	}

	if r.generator != nil {
		orchOpts := []orchestration.Option{
			orchestration.WithRetryPolicy(policy),
			orchestration.WithScorer(r.scorer),
			orchestration.WithJobTimeout(cfg.Jobs.Timeout),
			orchestration.WithCacheTTLs(cfg.Cache.RequirementTTL, cfg.Cache.ImageTTL),
			orchestration.WithDefaults(defaultsFor(cfg)),
		}
		if models.Enabled(cfg.Cache.Enabled) {
			orchOpts = append(orchOpts, orchestration.WithCache(r.cache))
		}
		r.orch = orchestration.New(r.jobs, r.generator, orchOpts...)
	}
	return r, nil
}

// Close releases the generator and the store.
func (r *services) Close() error {
	var errs []error
	if c, ok := r.generator.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := r.kv.(kvstore.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func newKVStore(ctx context.Context, cfg *projectconfig.ProjectConfig) (kvstore.Store, error) {
	switch cfg.Store.Backend {
	case projectconfig.BackendMemory:
		return kvstore.NewMemory(), nil
	case projectconfig.BackendFile:
		fs, err := kvstore.NewFileStore(cfg.Store.Dir)
		if err != nil {
			return nil, fmt.Errorf("opening file store: %w", err)
		}
		return fs, nil
	case projectconfig.BackendBlob:
		bs, err := kvstore.NewBlobStore(ctx, kvstore.BlobConfig{
			AccountURL:       cfg.Store.Blob.AccountURL,
			ConnectionString: cfg.BlobConnectionString(os.LookupEnv),
			Container:        cfg.Store.Blob.Container,
		})
		if err != nil {
			return nil, fmt.Errorf("opening blob store: %w", err)
		}
		return bs, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func newGenerator(engine string, cfg *projectconfig.ProjectConfig) (agents.Generator, error) {
	slog.Debug("Creating generator", "engine", engine, "model", cfg.Agent.Model)
	switch engine {
	case projectconfig.EngineCopilot:
		return agents.NewCopilotGenerator(agents.CopilotGeneratorOptions{
			Model:       cfg.Agent.Model,
			VisionModel: cfg.Agent.VisionModel,
			Timeout:     cfg.Agent.Timeout,
		}), nil
	case projectconfig.EngineOllama:
		return agents.NewOllamaGenerator(agents.OllamaOptions{
			Host:        cfg.Agent.OllamaHost,
			Model:       cfg.Agent.Model,
			VisionModel: cfg.Agent.VisionModel,
			Timeout:     cfg.Agent.Timeout,
		})
	case projectconfig.EngineScripted:
		return agents.NewScriptedGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (expected copilot, ollama or scripted)", engine)
	}
}

func newScorer(cfg *projectconfig.ProjectConfig, reviewer scoring.Reviewer) (*scoring.Engine, error) {
	var rubric *scoring.Rubric
	if cfg.Validation.RubricFile != "" {
		r, err := scoring.LoadRubric(cfg.Validation.RubricFile)
		if err != nil {
			return nil, err
		}
		rubric = r
	}
	return scoring.NewEngine(rubric, reviewer), nil
}

func retryPolicy(cfg *projectconfig.ProjectConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Delay:       cfg.Retry.Delay,
		Backoff:     cfg.Retry.Backoff,
	}
}

func defaultsFor(cfg *projectconfig.ProjectConfig) orchestration.Defaults {
	return orchestration.Defaults{
		Options: models.GenerationOptions{
			Validate:         cfg.Validation.Enabled,
			SecondaryOpinion: cfg.Validation.SecondaryOpinion,
			AppID:            cfg.Defaults.AppID,
			PackageName:      cfg.Defaults.PackageName,
		},
		ProjectNamespace: cfg.Defaults.ProjectNamespace,
		ComponentGroup:   cfg.Defaults.ComponentGroup,
	}
}

// storeHint explains a missing job when the store cannot be shared.
func storeHint(cfg *projectconfig.ProjectConfig, err error) error {
	if errors.Is(err, jobstore.ErrJobNotFound) && cfg.Store.Backend == projectconfig.BackendMemory {
		return fmt.Errorf("%w (the memory store lives only as long as one process; use store.backend file or blob to share jobs)", err)
	}
	return err
}
