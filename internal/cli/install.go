package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/entireio/ai-barometer/internal/gitadapter"
	"github.com/entireio/ai-barometer/internal/settings"
)

// hookShimContent is written verbatim to $HOME/.git-hooks/post-commit.
const hookShimContent = "#!/bin/sh\nexec ai-barometer hook post-commit\n"

const hooksDirName = ".git-hooks"
const hookFileName = "post-commit"

func newInstallCmd() *cobra.Command {
	var org string
	var defaultSinceDays int

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the post-commit hook and run an initial backfill",
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, err := homeDir()
			if err != nil {
				return err
			}
			initLogging(home)

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			complete := true

			if err := installHookShim(home); err != nil {
				fmt.Fprintf(errOut, "[ai-barometer] failed to install hook shim: %v\n", err)
				complete = false
			} else {
				fmt.Fprintln(out, "installed post-commit hook shim")
			}

			adapter := gitadapter.New()
			if err := adapter.ConfigSet(cmd.Context(), "", true, "core.hooksPath", filepath.Join(home, hooksDirName)); err != nil {
				fmt.Fprintf(errOut, "[ai-barometer] failed to set core.hooksPath: %v\n", err)
				complete = false
			} else {
				fmt.Fprintln(out, "set global core.hooksPath")
			}

			if org != "" {
				if err := adapter.ConfigSet(cmd.Context(), "", true, "ai.barometer.org", org); err != nil {
					fmt.Fprintf(errOut, "[ai-barometer] failed to persist --org: %v\n", err)
					complete = false
				} else {
					fmt.Fprintf(out, "persisted organization filter: %s\n", org)
				}
			}

			if err := settings.Save(home, settings.Settings{DefaultSinceDays: defaultSinceDays}); err != nil {
				fmt.Fprintf(errOut, "[ai-barometer] failed to save settings: %v\n", err)
				complete = false
			} else {
				fmt.Fprintf(out, "saved default hydration window: %dd\n", defaultSinceDays)
			}

			cwd, err := os.Getwd()
			if err != nil {
				fmt.Fprintf(errOut, "[ai-barometer] failed to resolve working directory for initial backfill: %v\n", err)
				complete = false
			} else {
				h := newHydrator(home)
				summary := h.Run(cmd.Context(), cwd, time.Duration(defaultSinceDays)*24*time.Hour, false, time.Now())
				fmt.Fprintln(out, summary.String())
			}

			if complete {
				fmt.Fprintln(out, "install complete")
			} else {
				fmt.Fprintln(out, "install completed with errors")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "restrict automatic pushes to remotes under this organization")
	cmd.Flags().IntVar(&defaultSinceDays, "default-since-days", 7, "default hydrate lookback window in days, saved to settings.json")

	return cmd
}

// installHookShim writes the fixed hook shim to $HOME/.git-hooks/post-commit.
// An existing file that does not already contain "ai-barometer" is
// overwritten with a loud warning; no backup is written.
func installHookShim(home string) error {
	dir := filepath.Join(home, hooksDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating hooks directory: %w", err)
	}

	path := filepath.Join(dir, hookFileName)
	if existing, err := os.ReadFile(path); err == nil {
		if !bytes.Contains(existing, []byte("ai-barometer")) {
			fmt.Fprintf(os.Stderr, "[ai-barometer] warning: overwriting existing hook at %s\n", path)
		}
	}

	return os.WriteFile(path, []byte(hookShimContent), 0o755)
}
