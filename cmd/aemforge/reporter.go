package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spboyer/aemforge/internal/hooks"
	"github.com/spboyer/aemforge/internal/models"
	"github.com/spboyer/aemforge/internal/reporting"
	"github.com/spboyer/aemforge/internal/spinner"
	"github.com/spboyer/aemforge/internal/workspace"
	"github.com/spf13/cobra"
)

// Output formats.
const (
	formatText     = "text"
	formatJSON     = "json"
	formatMarkdown = "markdown"
	formatHTML     = "html"
)

var resultFormats = []string{formatText, formatJSON, formatMarkdown, formatHTML}

func checkFormat(format string, allowed []string) error {
	if !slices.Contains(allowed, format) {
		return fmt.Errorf("invalid format %q (expected one of: %s)", format, strings.Join(allowed, ", "))
	}
	return nil
}

// outputOptions controls how a finished job is reported and exported.
type outputOptions struct {
	format    string
	junit     string
	outDir    string
	export    bool
	overwrite bool
	dryRun    bool
}

func (o *outputOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", formatText, "Output format: "+strings.Join(resultFormats, ", "))
	cmd.Flags().StringVar(&o.junit, "junit", "", "Write a JUnit XML report of the validation to this path")
	cmd.Flags().StringVarP(&o.outDir, "out", "o", "", "Write the generated files below this directory")
	cmd.Flags().BoolVar(&o.export, "export", false, "Write the generated files into the AEM project containing --dir")
	cmd.Flags().BoolVar(&o.overwrite, "overwrite", false, "Replace existing files when writing")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Show where files would be written without writing them")
	cmd.MarkFlagsMutuallyExclusive("out", "export")
}

// emit prints res, writes the optional JUnit report and exports the bundle.
// It returns a ValidationFailedError when the component did not pass.
func (o *outputOptions) emit(cmd *cobra.Command, a *app, res *models.JobResult) error {
	out := cmd.OutOrStdout()
	if err := writeResult(out, res, o.format, spinner.IsTerminal(out)); err != nil {
		return err
	}

	if o.junit != "" {
		if err := reporting.WriteJUnitXML(res, o.junit); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "JUnit report written to %s\n", o.junit) //nolint:errcheck
	}

	if err := o.exportBundle(cmd, a, res); err != nil {
		return err
	}

	if res.Validation != nil && res.Validation.Status == models.ValidationFail {
		return &ValidationFailedError{Component: res.ComponentName, Score: res.Validation.Score}
	}
	return nil
}

func (o *outputOptions) exportBundle(cmd *cobra.Command, a *app, res *models.JobResult) error {
	root := o.outDir
	if o.export {
		project, err := workspace.DetectProject(a.dir)
		if err != nil {
			return err
		}
		if project.Type != workspace.ContextProject {
			return fmt.Errorf("no AEM project (core + ui.apps) found at or above %s", project.Root)
		}
		root = project.Root
	}
	if root == "" {
		return nil
	}

	cfg, err := a.config()
	if err != nil {
		return err
	}
	runner := &hooks.Runner{}
	vars := hooks.Vars{Component: res.ComponentName, Root: root}
	if !o.dryRun {
		if err := runner.Run(cmd.Context(), hooks.BeforeExport, cfg.Hooks.BeforeExport, vars); err != nil {
			return err
		}
	}

	files, err := workspace.Export(root, res.Bundle, workspace.ExportOptions{Overwrite: o.overwrite, DryRun: o.dryRun})
	if err != nil {
		return fmt.Errorf("exporting component: %w", err)
	}

	w := cmd.ErrOrStderr()
	verb := "Wrote"
	if o.dryRun {
		verb = "Would write"
	}
	for _, f := range files {
		fmt.Fprintf(w, "%s %s (%d bytes)\n", verb, f.Path, f.Bytes) //nolint:errcheck
	}
	if o.dryRun {
		return nil
	}
	return runner.Run(cmd.Context(), hooks.AfterExport, cfg.Hooks.AfterExport, vars)
}

func writeResult(w io.Writer, res *models.JobResult, format string, color bool) error {
	switch format {
	case formatJSON:
		return writeJSON(w, res)
	case formatMarkdown:
		_, err := io.WriteString(w, reporting.Markdown(res))
		return err
	case formatHTML:
		page, err := reporting.HTML(res)
		if err != nil {
			return err
		}
		_, err = w.Write(page)
		return err
	default:
		if _, err := io.WriteString(w, reporting.FormatSummary(res)); err != nil {
			return err
		}
		if res.Validation != nil {
			reporting.WriteScorecard(w, "Validation "+reporting.StatusBadge(res.Validation.Status, color), res.Validation, color)
		}
		return nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
