package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
)

// historyResult is the json output of the history command.
type historyResult struct {
	Reviewable    *moderation.Reviewable `json:"reviewable"`
	Comment       string                 `json:"comment,omitempty"`
	ValidTriggers []moderation.Trigger   `json:"valid_triggers"`
	Actions       []moderation.Action    `json:"actions"`
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <reviewable-id>",
		Short: "Show a reviewable's state and audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID("reviewable", args[0])
			if err != nil {
				return err
			}

			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			var res historyResult
			if res.Reviewable, err = a.engine.Reviewable(ctx, id); err != nil {
				return err
			}
			if res.Actions, err = a.engine.History(ctx, id); err != nil {
				return err
			}
			if res.Comment, err = a.engine.Comment(ctx, id); err != nil {
				return err
			}
			if res.ValidTriggers, err = a.engine.ValidTriggers(ctx, id); err != nil {
				return err
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}

			out := cmd.OutOrStdout()
			triggers := make([]string, len(res.ValidTriggers))
			for i, t := range res.ValidTriggers {
				triggers[i] = string(t)
			}
			fmt.Fprintf(out, "state: %s  published: %t  valid triggers: [%s]\n",
				res.Reviewable.State, res.Reviewable.Published, strings.Join(triggers, ", "))
			if res.Comment != "" {
				fmt.Fprintf(out, "comment: %s\n", res.Comment)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tTRIGGER\tFROM\tTO\tACTOR\tCOMMENT")
			for _, act := range res.Actions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					act.CreatedAt.Format(time.RFC3339), act.Trigger, act.FromState, act.ToState, act.ActorID, act.Comment)
			}
			return tw.Flush()
		},
	}
}
