package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// newHookCmd is the parent for hook subcommands; only post-commit
// exists today, but the shim points at a stable `hook <name>` form so
// future hook types don't require reinstalling the shim.
func newHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "hook",
		Short:  "Run a Git hook",
		Hidden: true,
	}
	cmd.AddCommand(newHookPostCommitCmd())
	return cmd
}

func newHookPostCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post-commit",
		Short: "Run the post-commit note-attachment pipeline",
		// RunE still returns nil unconditionally: this subcommand must
		// always exit 0, per spec, regardless of what happens inside.
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, err := homeDir()
			if err != nil {
				return nil //nolint:nilerr // hook must never fail a commit, even on home resolution failure
			}
			initLogging(home)

			cwd, err := os.Getwd()
			if err != nil {
				return nil //nolint:nilerr // same invariant: never fail the commit
			}

			p := newPipeline(home)
			p.RunPostCommit(cmd.Context(), cwd)
			return nil
		},
	}
}
