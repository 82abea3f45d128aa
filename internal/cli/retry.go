package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entireio/ai-barometer/internal/clierr"
)

func newRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Drain the pending-attachment queue for the current repository",
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, err := homeDir()
			if err != nil {
				return err
			}
			initLogging(home)

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolving working directory: %w", err)
			}

			p := newPipeline(home)
			if err := p.Retry(cmd.Context(), cwd); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "[ai-barometer] %v\n", err)
				return clierr.NewSilentError(err)
			}
			return nil
		},
	}
}
