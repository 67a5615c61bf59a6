package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
)

type registerOptions struct {
	*rootOptions
	ID        string
	Provider  string
	Container string
	Artifact  string
	Subjects  []string
}

func newRegisterCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &registerOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new reviewable in the initial state",
		Long: `Register a reviewable owned by --provider inside --container.

With --artifact the container is created (or replaced) with that primary
artifact, which makes the item publishable.

Examples:
  reviewkit register --provider 5b0c... --container 9f1e... --artifact 77aa... --subjects Physics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			item := &moderation.Reviewable{Subjects: opts.Subjects}

			var err error
			if opts.ID != "" {
				if item.ID, err = parseID("reviewable", opts.ID); err != nil {
					return err
				}
			}
			if opts.Provider != "" {
				if item.ProviderID, err = parseID("provider", opts.Provider); err != nil {
					return err
				}
			}
			if opts.Container == "" {
				item.ContainerID = uuid.New()
			} else if item.ContainerID, err = parseID("container", opts.Container); err != nil {
				return err
			}

			a, err := openApp(ctx, opts.rootOptions)
			if err != nil {
				return err
			}
			defer a.close()

			if opts.Artifact != "" {
				artifact, err := parseID("artifact", opts.Artifact)
				if err != nil {
					return err
				}
				c := moderation.Container{
					ID:                  item.ContainerID,
					PrimaryArtifactID:   artifact,
					ArtifactContainerID: item.ContainerID,
					Abandoned:           true,
				}
				if err := a.store.PutContainer(ctx, c); err != nil {
					return fmt.Errorf("put container: %w", err)
				}
			}

			if err := a.engine.Register(ctx, item); err != nil {
				return err
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), item)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s in container %s (subjects: %s)\n",
				item.ID, item.ContainerID, strings.Join(item.Subjects, ", "))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "reviewable id (default: generated)")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "provider id")
	cmd.Flags().StringVar(&opts.Container, "container", "", "container id (default: generated)")
	cmd.Flags().StringVar(&opts.Artifact, "artifact", "", "primary artifact id; creates the container")
	cmd.Flags().StringSliceVar(&opts.Subjects, "subjects", nil, "comma-separated subjects")
	return cmd
}
