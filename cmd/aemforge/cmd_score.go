package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spboyer/aemforge/internal/models"
	"github.com/spboyer/aemforge/internal/reporting"
	"github.com/spboyer/aemforge/internal/spinner"
	"github.com/spf13/cobra"
)

var scoreFormats = []string{formatText, formatJSON}

func newScoreCommand(a *app) *cobra.Command {
	var (
		secondary bool
		format    string
		junit     string
		engine    string
	)

	cmd := &cobra.Command{
		Use:   "score <bundle.json|->",
		Short: "Score an existing component bundle",
		Long: `Score a component bundle against the AEM best-practice rubric.

The input is a JSON artifact bundle ({"artifacts": {...}, "groups": {...}})
or a job result carrying one under "files". Use - to read standard input.
With --secondary the rubric score is merged with a review by the configured
generator.

Exit code 1 means the bundle failed validation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, scoreFormats); err != nil {
				return err
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}
			bundle, err := readBundle(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			rt, err := newServices(cmd.Context(), cfg, serviceOptions{generator: secondary, engine: engine})
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			var report *models.ValidationReport
			if secondary {
				if report, err = rt.scorer.ScoreWithSecondaryOpinion(cmd.Context(), bundle); err != nil {
					return err
				}
			} else {
				report = rt.scorer.Score(bundle)
			}

			name := bundleName(args[0])
			out := cmd.OutOrStdout()
			if format == formatJSON {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				color := spinner.IsTerminal(out)
				reporting.WriteScorecard(out, name+" "+reporting.StatusBadge(report.Status, color), report, color)
			}

			if junit != "" {
				res := &models.JobResult{ComponentName: name, Status: models.JobCompleted, Bundle: bundle, Validation: report}
				if err := reporting.WriteJUnitXML(res, junit); err != nil {
					return err
				}
			}
			if report.Status == models.ValidationFail {
				return &ValidationFailedError{Component: name, Score: report.Score}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&secondary, "secondary", false, "Merge with a secondary review by the generator")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: "+strings.Join(scoreFormats, ", "))
	cmd.Flags().StringVar(&junit, "junit", "", "Write a JUnit XML report to this path")
	cmd.Flags().StringVar(&engine, "engine", "", "Generator engine used by --secondary (overrides config)")
	return cmd
}

// readBundle decodes a bundle, or a result holding one, from path.
func readBundle(stdin io.Reader, path string) (*models.ArtifactBundle, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}

	var doc struct {
		models.ArtifactBundle
		Files *models.ArtifactBundle `json:"files"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing bundle %s: %w", path, err)
	}
	if doc.Files != nil {
		return doc.Files, nil
	}
	if len(doc.Artifacts) == 0 && len(doc.Groups) == 0 {
		return nil, errors.New("no artifacts found in " + path)
	}
	return &doc.ArtifactBundle, nil
}

func bundleName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
