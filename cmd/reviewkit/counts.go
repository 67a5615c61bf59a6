package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
)

func newCountsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "counts <provider-id>",
		Short: "Count a provider's public reviewables per state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			providerID, err := parseID("provider", args[0])
			if err != nil {
				return err
			}

			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			counts, err := a.engine.StateCounts(ctx, providerID)
			if err != nil {
				return err
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), counts)
			}
			for _, s := range moderation.States() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %d\n", s, counts[s])
			}
			return nil
		},
	}
}
