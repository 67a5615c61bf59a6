package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
)

// rootOptions holds the global flags shared by every command.
type rootOptions struct {
	SQLite        string
	ProvidersFile string
	IdentifierURL string
	Format        string
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "reviewkit",
		Short: "Moderation workflow engine",
		Long: `reviewkit moves reviewable items through submit, accept, reject and
edit_comment under per-provider moderation policies.

The PostgreSQL backend is configured through PG_* environment variables.
Pass --sqlite to run against a local SQLite file instead. Deferred work is
then stored in the same file and processed inline by every command; tasks
that failed are retried by later commands once their backoff has passed,
or continuously by the worker.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.SQLite, "sqlite", "", "path to a SQLite database (overrides SQLITE_PATH)")
	cmd.PersistentFlags().StringVar(&opts.ProvidersFile, "providers", "", "provider registry YAML (overrides MODERATION_PROVIDERS_FILE)")
	cmd.PersistentFlags().StringVar(&opts.IdentifierURL, "identifier-url", "", "identifier registry endpoint (overrides MODERATION_IDENTIFIER_URL)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(
		newMigrateCommand(opts),
		newWorkerCommand(opts),
		newRegisterCommand(opts),
		newFireCommand(opts),
		newHistoryCommand(opts),
		newCountsCommand(opts),
	)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
