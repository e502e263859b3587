// Package hooks runs user-configured commands around a component export,
// for example a formatter or a Maven build of the target project.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
)

// Hook is a single command.
type Hook struct {
	Command string `yaml:"command" json:"command"`
	// Dir is the working directory; the export root when empty.
	Dir       string `yaml:"dir,omitempty" json:"dir,omitempty"`
	ExitCodes []int  `yaml:"exit_codes,omitempty" json:"exit_codes,omitempty"`
	// Required turns an unexpected exit into an error instead of a warning.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`
}

// Config holds the hooks of each export point.
type Config struct {
	BeforeExport []Hook `yaml:"before_export,omitempty" json:"before_export,omitempty"`
	AfterExport  []Hook `yaml:"after_export,omitempty" json:"after_export,omitempty"`
}

// Export points.
const (
	BeforeExport = "before_export"
	AfterExport  = "after_export"
)

// Vars describe the export a hook runs for. They are passed to the command
// as AEMFORGE_* environment variables.
type Vars struct {
	Component string
	Root      string
}

func (v Vars) env() []string {
	return []string{
		"AEMFORGE_COMPONENT=" + v.Component,
		"AEMFORGE_EXPORT_ROOT=" + v.Root,
	}
}

// Runner executes hooks.
type Runner struct {
	Logger *slog.Logger
}

// Run executes hooks in order and stops at the first required failure.
// point names the export point in logs and errors.
func (r *Runner) Run(ctx context.Context, point string, hooks []Hook, vars Vars) error {
	for i, h := range hooks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("hook %s: %w", point, err)
		}
		if err := r.run(ctx, fmt.Sprintf("%s[%d]", point, i), h, vars); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) run(ctx context.Context, name string, h Hook, vars Vars) error {
	parts := strings.Fields(os.Expand(h.Command, func(key string) string {
		switch key {
		case "component":
			return vars.Component
		case "root":
			return vars.Root
		}
		return os.Getenv(key)
	}))
	if len(parts) == 0 {
		return fmt.Errorf("hook %s: empty command", name)
	}

	//nolint:gosec // hook commands come from the project config
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = h.Dir
	if cmd.Dir == "" {
		cmd.Dir = vars.Root
	}
	cmd.Env = append(os.Environ(), vars.env()...)

	output, err := cmd.CombinedOutput()
	log := r.logger().With("hook", name, "command", parts[0])
	if len(output) > 0 {
		log.Debug("Hook output", "output", strings.TrimSpace(string(output)))
	}

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			if h.Required {
				return fmt.Errorf("hook %s: %w", name, err)
			}
			log.Warn("Hook failed, continuing", "error", err)
			return nil
		}
		code = exitErr.ExitCode()
	}

	if acceptable(code, h.ExitCodes) {
		return nil
	}
	if h.Required {
		return fmt.Errorf("hook %s: command exited with code %d", name, code)
	}
	log.Warn("Hook exited with unexpected code, continuing", "code", code)
	return nil
}

// acceptable reports whether code is allowed. No codes means only 0.
func acceptable(code int, allowed []int) bool {
	if len(allowed) == 0 {
		return code == 0
	}
	return slices.Contains(allowed, code)
}
