package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/entireio/ai-barometer/internal/cli"
	"github.com/entireio/ai-barometer/internal/clierr"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	rootCmd := cli.NewRootCmd()
	err := rootCmd.ExecuteContext(ctx)

	if err != nil {
		var silent *clierr.SilentError
		if !errors.As(err, &silent) {
			fmt.Fprintln(rootCmd.OutOrStderr(), err)
		}
		cancel()
		os.Exit(1)
	}
	cancel()
}
