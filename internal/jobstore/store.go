// Package jobstore persists job status records and results with TTLs.
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spboyer/aemforge/internal/kvstore"
	"github.com/spboyer/aemforge/internal/models"
)

// Default prefixes and lifetimes for persisted entries.
const (
	DefaultStatusPrefix = "aem_status:"
	DefaultResultPrefix = "aem_result:"
	DefaultStatusTTL    = time.Hour
	DefaultResultTTL    = 24 * time.Hour
)

// ErrJobNotFound is returned when an ID does not match any stored job.
var ErrJobNotFound = errors.New("job not found")

// ErrStoreUnavailable is returned when the backing store cannot answer.
// It is never used for a job that simply does not exist.
var ErrStoreUnavailable = errors.New("job store unavailable")

// Store provides access to job status and results.
type Store interface {
	// PutStatus writes the status record for job.ID.
	PutStatus(ctx context.Context, job *models.Job) error
	// GetStatus returns the status record, ErrJobNotFound, or ErrStoreUnavailable.
	GetStatus(ctx context.Context, id string) (*models.Job, error)
	// PutResult writes the final result of a job.
	PutResult(ctx context.Context, result *models.JobResult) error
	// GetResult returns the result, nil when none was written yet, or
	// ErrStoreUnavailable.
	GetResult(ctx context.Context, id string) (*models.JobResult, error)
}

// Config controls key layout and lifetimes.
type Config struct {
	StatusPrefix string
	ResultPrefix string
	StatusTTL    time.Duration
	ResultTTL    time.Duration
}

func (c *Config) applyDefaults() {
	if c.StatusPrefix == "" {
		c.StatusPrefix = DefaultStatusPrefix
	}
	if c.ResultPrefix == "" {
		c.ResultPrefix = DefaultResultPrefix
	}
	if c.StatusTTL <= 0 {
		c.StatusTTL = DefaultStatusTTL
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = DefaultResultTTL
	}
}

// KVStore stores JSON-encoded records in a kvstore.Store.
type KVStore struct {
	kv  kvstore.Store
	cfg Config
}

// New creates a KVStore; zero Config fields take their defaults.
func New(kv kvstore.Store, cfg Config) *KVStore {
	cfg.applyDefaults()
	return &KVStore{kv: kv, cfg: cfg}
}

func (s *KVStore) PutStatus(ctx context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return errors.New("job with an ID is required")
	}
	return s.put(ctx, s.cfg.StatusPrefix+job.ID, job, s.cfg.StatusTTL)
}

func (s *KVStore) GetStatus(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	found, err := s.get(ctx, s.cfg.StatusPrefix+id, &job)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return &job, nil
}

func (s *KVStore) PutResult(ctx context.Context, result *models.JobResult) error {
	if result == nil || result.JobID == "" {
		return errors.New("result with a job ID is required")
	}
	return s.put(ctx, s.cfg.ResultPrefix+result.JobID, result, s.cfg.ResultTTL)
}

func (s *KVStore) GetResult(ctx context.Context, id string) (*models.JobResult, error) {
	var result models.JobResult
	found, err := s.get(ctx, s.cfg.ResultPrefix+id, &result)
	if err != nil || !found {
		return nil, err
	}
	return &result, nil
}

func (s *KVStore) put(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrStoreUnavailable, key, err)
	}
	return nil
}

func (s *KVStore) get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: reading %s: %w", ErrStoreUnavailable, key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("%w: decoding %s: %w", ErrStoreUnavailable, key, err)
	}
	return true, nil
}

// Ensure KVStore satisfies Store.
var _ Store = (*KVStore)(nil)
