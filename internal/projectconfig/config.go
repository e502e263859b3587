// Package projectconfig provides the ProjectConfig struct and loader for
// .aemforge.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spboyer/aemforge/internal/hooks"
	"github.com/spboyer/aemforge/internal/utils"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up by Load.
const FileName = ".aemforge.yaml"

// maxParentWalk bounds how far Load walks up looking for FileName.
const maxParentWalk = 10

// Default values for project configuration. These are the single source of
// truth; New() references them and no other code should duplicate them.
const (
	DefaultServerHost      = "127.0.0.1"
	DefaultServerPort      = 8000
	DefaultRateLimitCalls  = 100
	DefaultRateLimitPeriod = time.Minute
	DefaultSyncTimeout     = 120 * time.Second

	DefaultStoreBackend      = BackendMemory
	DefaultStoreDir          = ".aemforge/store"
	DefaultStatusTTL         = time.Hour
	DefaultResultTTL         = 24 * time.Hour
	DefaultStatusPrefix      = "aem_status:"
	DefaultResultPrefix      = "aem_result:"
	DefaultBlobContainer     = "aemforge"
	DefaultConnectionStrEnv  = "AEMFORGE_BLOB_CONNECTION_STRING"
	DefaultCachePrefix       = "aem_gen:"
	DefaultRequirementTTL    = time.Hour
	DefaultImageTTL          = 2 * time.Hour
	DefaultRetryMaxAttempts  = 3
	DefaultRetryDelay        = time.Second
	DefaultRetryBackoff      = 2.0
	DefaultAgentEngine       = EngineCopilot
	DefaultAgentTimeout      = 300 * time.Second
	DefaultJobTimeout        = 10 * time.Minute
	DefaultLogMaxSizeMB      = 10
	DefaultLogMaxBackups     = 3
	DefaultLogMaxAgeDays     = 28
	DefaultAppID             = "myapp"
	DefaultPackageName       = "com.mycompany.myapp"
	DefaultProjectNamespace  = "wknd"
	DefaultComponentGroup    = "WKND.Content"
	DefaultValidationEnabled = true
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBlob   = "blob"
)

// Agent engines.
const (
	EngineCopilot  = "copilot"
	EngineOllama   = "ollama"
	EngineScripted = "scripted"
)

// Environment variables that override file settings. Secrets belong here
// rather than in the checked-in file.
const (
	EnvStoreBackend   = "AEMFORGE_STORE_BACKEND"
	EnvStoreDir       = "AEMFORGE_STORE_DIR"
	EnvBlobAccountURL = "AEMFORGE_BLOB_ACCOUNT_URL"
	EnvBlobContainer  = "AEMFORGE_BLOB_CONTAINER"
	EnvAgentEngine    = "AEMFORGE_AGENT_ENGINE"
	EnvModel          = "AEMFORGE_MODEL"
	EnvVisionModel    = "AEMFORGE_VISION_MODEL"
	EnvOllamaHost     = "AEMFORGE_OLLAMA_HOST"
	EnvPort           = "AEMFORGE_PORT"
)

// RateLimitConfig holds per-client request limits of the HTTP API.
type RateLimitConfig struct {
	Calls  int           `yaml:"calls,omitempty"`
	Period time.Duration `yaml:"period,omitempty"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host           string          `yaml:"host,omitempty"`
	Port           int             `yaml:"port,omitempty"`
	AllowedOrigins []string        `yaml:"allowed_origins,omitempty"`
	RateLimit      RateLimitConfig `yaml:"rate_limit,omitempty"`
	SyncTimeout    time.Duration   `yaml:"sync_timeout,omitempty"`
}

// BlobConfig locates the Azure Blob Storage container of the blob backend.
type BlobConfig struct {
	AccountURL string `yaml:"account_url,omitempty"`
	Container  string `yaml:"container,omitempty"`
	// ConnectionStringEnv names the environment variable holding the
	// connection string. Without one, DefaultAzureCredential is used.
	ConnectionStringEnv string `yaml:"connection_string_env,omitempty"`
}

// StoreConfig selects where job records and cached analyses are kept.
type StoreConfig struct {
	Backend      string        `yaml:"backend,omitempty"`
	Dir          string        `yaml:"dir,omitempty"`
	Blob         BlobConfig    `yaml:"blob,omitempty"`
	StatusTTL    time.Duration `yaml:"status_ttl,omitempty"`
	ResultTTL    time.Duration `yaml:"result_ttl,omitempty"`
	StatusPrefix string        `yaml:"status_prefix,omitempty"`
	ResultPrefix string        `yaml:"result_prefix,omitempty"`
}

// CacheConfig holds analysis cache settings.
type CacheConfig struct {
	Enabled        *bool         `yaml:"enabled,omitempty"`
	Prefix         string        `yaml:"prefix,omitempty"`
	RequirementTTL time.Duration `yaml:"requirement_ttl,omitempty"`
	ImageTTL       time.Duration `yaml:"image_ttl,omitempty"`
}

// RetryConfig holds the backoff policy of generator calls.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	Delay       time.Duration `yaml:"delay,omitempty"`
	Backoff     float64       `yaml:"backoff,omitempty"`
}

// AgentConfig selects and tunes the generator.
type AgentConfig struct {
	Engine      string        `yaml:"engine,omitempty"`
	Model       string        `yaml:"model,omitempty"`
	VisionModel string        `yaml:"vision_model,omitempty"`
	OllamaHost  string        `yaml:"ollama_host,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// DefaultsConfig fills identity settings requests leave blank.
type DefaultsConfig struct {
	AppID            string `yaml:"app_id,omitempty"`
	PackageName      string `yaml:"package_name,omitempty"`
	ProjectNamespace string `yaml:"project_namespace,omitempty"`
	ComponentGroup   string `yaml:"component_group,omitempty"`
}

// ValidationConfig holds scoring settings.
type ValidationConfig struct {
	Enabled          *bool  `yaml:"enabled,omitempty"`
	SecondaryOpinion *bool  `yaml:"secondary_opinion,omitempty"`
	RubricFile       string `yaml:"rubric_file,omitempty"`
}

// LoggingConfig holds the rotating log file settings.
type LoggingConfig struct {
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// JobsConfig bounds job execution.
type JobsConfig struct {
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .aemforge.yaml.
type ProjectConfig struct {
	Server     ServerConfig     `yaml:"server,omitempty"`
	Store      StoreConfig      `yaml:"store,omitempty"`
	Cache      CacheConfig      `yaml:"cache,omitempty"`
	Retry      RetryConfig      `yaml:"retry,omitempty"`
	Agent      AgentConfig      `yaml:"agent,omitempty"`
	Defaults   DefaultsConfig   `yaml:"defaults,omitempty"`
	Validation ValidationConfig `yaml:"validation,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Jobs       JobsConfig       `yaml:"jobs,omitempty"`
	Hooks      hooks.Config     `yaml:"hooks,omitempty"`

	// Path is the file the configuration was read from; empty when only
	// defaults apply.
	Path string `yaml:"-"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Server: ServerConfig{
			Host:        DefaultServerHost,
			Port:        DefaultServerPort,
			RateLimit:   RateLimitConfig{Calls: DefaultRateLimitCalls, Period: DefaultRateLimitPeriod},
			SyncTimeout: DefaultSyncTimeout,
		},
		Store: StoreConfig{
			Backend: DefaultStoreBackend,
			Dir:     DefaultStoreDir,
			Blob: BlobConfig{
				Container:           DefaultBlobContainer,
				ConnectionStringEnv: DefaultConnectionStrEnv,
			},
			StatusTTL:    DefaultStatusTTL,
			ResultTTL:    DefaultResultTTL,
			StatusPrefix: DefaultStatusPrefix,
			ResultPrefix: DefaultResultPrefix,
		},
		Cache: CacheConfig{
			Enabled:        utils.Ptr(true),
			Prefix:         DefaultCachePrefix,
			RequirementTTL: DefaultRequirementTTL,
			ImageTTL:       DefaultImageTTL,
		},
		Retry: RetryConfig{
			MaxAttempts: DefaultRetryMaxAttempts,
			Delay:       DefaultRetryDelay,
			Backoff:     DefaultRetryBackoff,
		},
		Agent: AgentConfig{
			Engine:  DefaultAgentEngine,
			Timeout: DefaultAgentTimeout,
		},
		Defaults: DefaultsConfig{
			AppID:            DefaultAppID,
			PackageName:      DefaultPackageName,
			ProjectNamespace: DefaultProjectNamespace,
			ComponentGroup:   DefaultComponentGroup,
		},
		Validation: ValidationConfig{
			Enabled:          utils.Ptr(DefaultValidationEnabled),
			SecondaryOpinion: utils.Ptr(false),
		},
		Logging: LoggingConfig{
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
		Jobs: JobsConfig{
			Timeout: DefaultJobTimeout,
		},
	}
}

// Load finds .aemforge.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults. A .env file next
// to the config file (or in startDir when there is none) is loaded into the
// process environment without replacing variables already set, then
// AEMFORGE_* variables override file values. Relative paths are resolved
// against the config file's directory.
// If no config file is found, returns defaults with a nil error.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	path, data, err := findConfigFile(startDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	default:
		var fileCfg ProjectConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		mergeConfig(cfg, &fileCfg)
		cfg.Path = path
	}

	if err := loadDotEnv(cfg.BaseDir(startDir)); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.resolvePaths(cfg.BaseDir(startDir))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BaseDir is the directory relative paths are resolved against: the config
// file's directory, or fallback when no file was loaded.
func (c *ProjectConfig) BaseDir(fallback string) string {
	if c.Path != "" {
		return filepath.Dir(c.Path)
	}
	abs, err := filepath.Abs(fallback)
	if err != nil {
		return fallback
	}
	return abs
}

func loadDotEnv(dir string) error {
	p := filepath.Join(dir, ".env")
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %q: %w", p, err)
	}
	if err := godotenv.Load(p); err != nil {
		return fmt.Errorf("loading %q: %w", p, err)
	}
	return nil
}

// findConfigFile walks up from dir looking for .aemforge.yaml. Returns
// os.ErrNotExist if no config file is found and propagates real I/O errors.
func findConfigFile(dir string) (string, []byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for range maxParentWalk {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return p, data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil, os.ErrNotExist
}

// ApplyEnv overrides settings from AEMFORGE_* variables found by lookup.
func (c *ProjectConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	set := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	set(EnvStoreBackend, &c.Store.Backend)
	set(EnvStoreDir, &c.Store.Dir)
	set(EnvBlobAccountURL, &c.Store.Blob.AccountURL)
	set(EnvBlobContainer, &c.Store.Blob.Container)
	set(EnvAgentEngine, &c.Agent.Engine)
	set(EnvModel, &c.Agent.Model)
	set(EnvVisionModel, &c.Agent.VisionModel)
	set(EnvOllamaHost, &c.Agent.OllamaHost)

	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		c.Server.Port = port
	}
	return nil
}

// BlobConnectionString returns the connection string named by
// store.blob.connection_string_env, if set.
func (c *ProjectConfig) BlobConnectionString(lookup func(string) (string, bool)) string {
	if c.Store.Blob.ConnectionStringEnv == "" {
		return ""
	}
	v, _ := lookup(c.Store.Blob.ConnectionStringEnv)
	return v
}

func (c *ProjectConfig) resolvePaths(base string) {
	c.Store.Dir = utils.ResolvePath(c.Store.Dir, base)
	c.Validation.RubricFile = utils.ResolvePath(c.Validation.RubricFile, base)
	c.Logging.File = utils.ResolvePath(c.Logging.File, base)
	for _, list := range [][]hooks.Hook{c.Hooks.BeforeExport, c.Hooks.AfterExport} {
		for i := range list {
			if list[i].Dir != "" {
				list[i].Dir = utils.ResolvePath(list[i].Dir, base)
			}
		}
	}
}

// Validate reports every setting that cannot be used.
func (c *ProjectConfig) Validate() error {
	var errs []error
	if !slices.Contains([]string{BackendMemory, BackendFile, BackendBlob}, c.Store.Backend) {
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}
	if c.Store.Backend == BackendBlob && c.Store.Blob.AccountURL == "" && c.Store.Blob.ConnectionStringEnv == "" {
		errs = append(errs, errors.New("store.blob: account_url or connection_string_env is required"))
	}
	if !slices.Contains([]string{EngineCopilot, EngineOllama, EngineScripted}, c.Agent.Engine) {
		errs = append(errs, fmt.Errorf("agent.engine: unknown engine %q", c.Agent.Engine))
	}
	if c.Agent.Engine == EngineOllama && c.Agent.Model == "" {
		errs = append(errs, errors.New("agent.model: required for the ollama engine"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}
	if c.Retry.Backoff < 1 {
		errs = append(errs, fmt.Errorf("retry.backoff: must be at least 1, got %v", c.Retry.Backoff))
	}
	for i, h := range c.Hooks.BeforeExport {
		if strings.TrimSpace(h.Command) == "" {
			errs = append(errs, fmt.Errorf("hooks.before_export[%d]: command is required", i))
		}
	}
	for i, h := range c.Hooks.AfterExport {
		if strings.TrimSpace(h.Command) == "" {
			errs = append(errs, fmt.Errorf("hooks.after_export[%d]: command is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid %s: %w", FileName, errors.Join(errs...))
	}
	return nil
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Server
	setString(&dst.Server.Host, src.Server.Host)
	setInt(&dst.Server.Port, src.Server.Port)
	if len(src.Server.AllowedOrigins) > 0 {
		dst.Server.AllowedOrigins = src.Server.AllowedOrigins
	}
	setInt(&dst.Server.RateLimit.Calls, src.Server.RateLimit.Calls)
	setDuration(&dst.Server.RateLimit.Period, src.Server.RateLimit.Period)
	setDuration(&dst.Server.SyncTimeout, src.Server.SyncTimeout)

	// Store
	setString(&dst.Store.Backend, src.Store.Backend)
	setString(&dst.Store.Dir, src.Store.Dir)
	setString(&dst.Store.Blob.AccountURL, src.Store.Blob.AccountURL)
	setString(&dst.Store.Blob.Container, src.Store.Blob.Container)
	setString(&dst.Store.Blob.ConnectionStringEnv, src.Store.Blob.ConnectionStringEnv)
	setDuration(&dst.Store.StatusTTL, src.Store.StatusTTL)
	setDuration(&dst.Store.ResultTTL, src.Store.ResultTTL)
	setString(&dst.Store.StatusPrefix, src.Store.StatusPrefix)
	setString(&dst.Store.ResultPrefix, src.Store.ResultPrefix)

	// Cache
	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	setString(&dst.Cache.Prefix, src.Cache.Prefix)
	setDuration(&dst.Cache.RequirementTTL, src.Cache.RequirementTTL)
	setDuration(&dst.Cache.ImageTTL, src.Cache.ImageTTL)

	// Retry
	setInt(&dst.Retry.MaxAttempts, src.Retry.MaxAttempts)
	setDuration(&dst.Retry.Delay, src.Retry.Delay)
	if src.Retry.Backoff != 0 {
		dst.Retry.Backoff = src.Retry.Backoff
	}

	// Agent
	setString(&dst.Agent.Engine, src.Agent.Engine)
	setString(&dst.Agent.Model, src.Agent.Model)
	setString(&dst.Agent.VisionModel, src.Agent.VisionModel)
	setString(&dst.Agent.OllamaHost, src.Agent.OllamaHost)
	setDuration(&dst.Agent.Timeout, src.Agent.Timeout)

	// Defaults
	setString(&dst.Defaults.AppID, src.Defaults.AppID)
	setString(&dst.Defaults.PackageName, src.Defaults.PackageName)
	setString(&dst.Defaults.ProjectNamespace, src.Defaults.ProjectNamespace)
	setString(&dst.Defaults.ComponentGroup, src.Defaults.ComponentGroup)

	// Validation
	if src.Validation.Enabled != nil {
		dst.Validation.Enabled = src.Validation.Enabled
	}
	if src.Validation.SecondaryOpinion != nil {
		dst.Validation.SecondaryOpinion = src.Validation.SecondaryOpinion
	}
	setString(&dst.Validation.RubricFile, src.Validation.RubricFile)

	// Logging
	setString(&dst.Logging.File, src.Logging.File)
	setInt(&dst.Logging.MaxSizeMB, src.Logging.MaxSizeMB)
	setInt(&dst.Logging.MaxBackups, src.Logging.MaxBackups)
	setInt(&dst.Logging.MaxAgeDays, src.Logging.MaxAgeDays)

	// Jobs
	setDuration(&dst.Jobs.Timeout, src.Jobs.Timeout)

	// Hooks
	if len(src.Hooks.BeforeExport) > 0 {
		dst.Hooks.BeforeExport = src.Hooks.BeforeExport
	}
	if len(src.Hooks.AfterExport) > 0 {
		dst.Hooks.AfterExport = src.Hooks.AfterExport
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
