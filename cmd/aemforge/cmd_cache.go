package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the analysis cache",
		Long: `Manage the analysis cache.

Requirement and image analyses are cached in the configured store, keyed by
a fingerprint of the prompt or image URL, so repeated requests skip those
generator calls until the entries expire.`,
	}

	cmd.AddCommand(newCacheClearCommand(a))
	return cmd
}

func newCacheClearCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached analysis",
		Long: `Remove every cached analysis from the configured store. Job records are
kept. The next requests re-run requirement and image analysis.`,
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

			n, err := rt.cache.Clear(cmd.Context())
			if err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared: %d entries removed from the %s store\n", n, cfg.Store.Backend) //nolint:errcheck
			return nil
		},
	}
}
