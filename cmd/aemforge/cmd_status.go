package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <request-id>",
		Short: "Show the status of a generation job",
		Long: `Show the status of a generation job recorded in the configured store.

Jobs submitted to "aemforge serve" can be inspected when the server and this
command share a file or blob store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			rt, err := newServices(cmd.Context(), cfg, serviceOptions{})
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			job, err := rt.jobs.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return storeHint(cfg, err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, job)
			}
			_, err = fmt.Fprintf(out, "Job:      %s\nStatus:   %s\nProgress: %d%%\nStep:     %s\nUpdated:  %s\n",
				job.ID, job.Status, job.Progress, job.CurrentStep, job.UpdatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw job record")
	return cmd
}
