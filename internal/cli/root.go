// Package cli wires ai-barometer's cobra command tree: install, hook
// post-commit, hydrate, retry, status, version.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/entireio/ai-barometer/internal/gitadapter"
	"github.com/entireio/ai-barometer/internal/hookpipeline"
	"github.com/entireio/ai-barometer/internal/hydrate"
	"github.com/entireio/ai-barometer/internal/logging"
	"github.com/entireio/ai-barometer/internal/pending"
	"github.com/entireio/ai-barometer/internal/pushgate"
)

// Version and Commit are set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

const accessibilityHelp = `
Environment Variables:
  ACCESSIBLE    Set to any value to enable accessibility mode. This uses
                a plain-text prompt instead of an interactive TUI form,
                which works better with screen readers and in CI.
`

// NewRootCmd builds the root command and its full subcommand tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai-barometer",
		Short: "Correlate AI coding sessions with Git commits",
		Long:  "ai-barometer attaches AI coding agent session transcripts to the commits they produced, as Git notes." + accessibilityHelp,
		// Let main.go handle error printing to avoid duplication.
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newHookCmd())
	cmd.AddCommand(newHydrateCmd())
	cmd.AddCommand(newRetryCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ai-barometer %s (%s)\n", Version, Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// homeDir resolves $HOME, falling back to os.UserHomeDir's own error
// message if unset; every command needs this to locate agent logs,
// the pending store, and settings.
func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return home, nil
}

// pendingDir is the fixed location of the pending-retry store under
// $HOME, shared by every command that touches pending records.
func pendingDir(home string) string {
	return filepath.Join(home, ".ai-barometer", "pending")
}

// newPipeline builds a fully wired hookpipeline.Pipeline for home,
// logging through the package logger initialized by the root command.
func newPipeline(home string) *hookpipeline.Pipeline {
	adapter := gitadapter.New()
	store := pending.New(pendingDir(home))
	gate := pushgate.New(adapter, logging.Logger())
	return hookpipeline.New(adapter, store, gate, home, Version)
}

func newHydrator(home string) *hydrate.Hydrator {
	adapter := gitadapter.New()
	gate := pushgate.New(adapter, logging.Logger())
	return hydrate.New(adapter, gate, home, Version)
}

// initLogging initializes file logging for home, falling back silently
// to stderr-only logging on any failure: logging setup must never
// block a command from running.
func initLogging(home string) {
	_ = logging.Init(home) //nolint:errcheck // logging init failures fall back internally; never fatal
}
