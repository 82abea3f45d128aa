package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/entireio/ai-barometer/internal/clierr"
	"github.com/entireio/ai-barometer/internal/hydrate"
	"github.com/entireio/ai-barometer/internal/settings"
)

func newHydrateCmd() *cobra.Command {
	var since string
	var push bool

	cmd := &cobra.Command{
		Use:   "hydrate",
		Short: "Backfill notes from existing agent session logs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, err := homeDir()
			if err != nil {
				return err
			}
			initLogging(home)

			if !cmd.Flags().Changed("since") {
				if s, err := settings.Load(home); err == nil && s.DefaultSinceDays > 0 {
					since = fmt.Sprintf("%dd", s.DefaultSinceDays)
				}
			}

			window, err := hydrate.ParseSince(since)
			if err != nil {
				invalid := clierr.InvalidSince{Raw: since}
				fmt.Fprintf(cmd.ErrOrStderr(), "[ai-barometer] %v\n", invalid)
				return clierr.NewSilentError(invalid)
			}

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolving working directory: %w", err)
			}

			h := newHydrator(home)
			h.Out = cmd.OutOrStdout()
			summary := h.Run(cmd.Context(), cwd, window, push, time.Now())
			fmt.Fprintln(cmd.OutOrStdout(), summary.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "7d", "lookback window, as <N>d")
	cmd.Flags().BoolVar(&push, "push", false, "push attached notes to the remote after hydrating")

	return cmd
}
