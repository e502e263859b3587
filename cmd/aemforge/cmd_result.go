package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResultCommand(a *app) *cobra.Command {
	o := &outputOptions{}

	cmd := &cobra.Command{
		Use:   "result <request-id>",
		Short: "Show, report or export the result of a completed job",
		Long: `Show the result of a completed generation job recorded in the configured
store. The result can be rendered as text, JSON, Markdown or HTML, written as
a JUnit XML report, and exported into a directory or the current AEM project.`,
		Example: `  aemforge result 3f2c... --format markdown > hero.md
  aemforge result 3f2c... --junit reports/hero.xml
  aemforge result 3f2c... --export --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(o.format, resultFormats); err != nil {
				return err
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}
			rt, err := newServices(cmd.Context(), cfg, serviceOptions{})
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			id := args[0]
			res, err := rt.jobs.GetResult(cmd.Context(), id)
			if err != nil {
				return err
			}
			if res == nil {
				job, err := rt.jobs.GetStatus(cmd.Context(), id)
				if err != nil {
					return storeHint(cfg, err)
				}
				return fmt.Errorf("job %s has no result (status %s: %s)", id, job.Status, job.CurrentStep)
			}
			return o.emit(cmd, a, res)
		},
	}

	o.addFlags(cmd)
	return cmd
}
