package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/entireio/ai-barometer/internal/gitadapter"
	"github.com/entireio/ai-barometer/internal/model"
	"github.com/entireio/ai-barometer/internal/pending"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, notes, and pending queue status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, err := homeDir()
			if err != nil {
				return err
			}

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolving working directory: %w", err)
			}

			return runStatus(cmd.Context(), cmd.OutOrStdout(), home, cwd)
		},
	}
}

func runStatus(ctx context.Context, w io.Writer, home, cwd string) error {
	adapter := gitadapter.New()

	repoRoot, err := adapter.RepoRoot(ctx, cwd)
	if err != nil {
		fmt.Fprintln(w, "not a git repository")
		return nil //nolint:nilerr // not being in a repo is a valid status, not a hard error
	}

	enabled, err := adapter.ConfigGet(ctx, repoRoot, false, "ai.barometer.enabled")
	if err != nil {
		return fmt.Errorf("reading enabled config: %w", err)
	}
	if enabled == "false" {
		fmt.Fprintln(w, "disabled (ai.barometer.enabled=false)")
	} else {
		fmt.Fprintln(w, "enabled")
	}

	if hash, err := adapter.HeadHash(ctx, repoRoot); err == nil {
		exists, _ := adapter.NoteExists(ctx, repoRoot, hash)
		if exists {
			fmt.Fprintf(w, "HEAD (%s): note attached\n", model.ShortHash(hash))
		} else {
			fmt.Fprintf(w, "HEAD (%s): no note\n", model.ShortHash(hash))
		}
	}

	store := pending.New(pendingDir(home))
	records, err := store.List(repoRoot)
	if err != nil {
		return fmt.Errorf("listing pending records: %w", err)
	}
	fmt.Fprintf(w, "pending: %d\n", len(records))

	if org, _ := adapter.ConfigGet(ctx, repoRoot, true, "ai.barometer.org"); org != "" {
		fmt.Fprintf(w, "push org filter: %s\n", org)
	}

	return nil
}
