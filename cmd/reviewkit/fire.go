package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
)

type fireOptions struct {
	*rootOptions
	Actor   string
	Comment string
}

func newFireCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &fireOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fire <reviewable-id> <trigger>",
		Short: "Fire a trigger on a reviewable",
		Long: `Fire submit, accept, reject or edit_comment on a reviewable.

Examples:
  reviewkit fire 3f2a... submit --actor 11aa...
  reviewkit fire 3f2a... accept --actor 22bb... --comment "looks good"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID("reviewable", args[0])
			if err != nil {
				return err
			}
			actor, err := parseID("actor", opts.Actor)
			if err != nil {
				return err
			}
			trigger := moderation.Trigger(args[1])

			a, err := openApp(ctx, opts.rootOptions)
			if err != nil {
				return err
			}
			defer a.close()

			action, err := a.engine.Fire(ctx, id, trigger, actor, opts.Comment)
			if err != nil {
				return err
			}
			if err := a.drain(ctx); err != nil {
				return err
			}

			item, err := a.engine.Reviewable(ctx, id)
			if err != nil {
				return err
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), struct {
					Action     *moderation.Action     `json:"action"`
					Reviewable *moderation.Reviewable `json:"reviewable"`
				}{action, item})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s (published: %t)\n",
				action.Trigger, action.FromState, action.ToState, item.Published)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Actor, "actor", "", "id of the user firing the trigger")
	cmd.Flags().StringVar(&opts.Comment, "comment", "", "moderator comment")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}
