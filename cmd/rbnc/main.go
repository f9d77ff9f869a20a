package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neurlang/rbnc/config"
)

func newRootCmd() *cobra.Command {
	var logCfg = config.Default().Log
	root := &cobra.Command{
		Use:           "rbnc",
		Short:         "Sufficient statistics for randomized Bayesian network classifier ensembles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Validate(logCfg); err != nil {
				return err
			}
			slog.SetDefault(slog.New(logCfg.Handler(cmd.ErrOrStderr())))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logCfg.Level, "log-level", logCfg.Level, "debug, info, warn or error")
	root.PersistentFlags().StringVar(&logCfg.Format, "log-format", logCfg.Format, "text or json")
	root.AddCommand(
		newGenerateCmd(),
		newSynthCmd(),
		newCountCmd(),
		newMergeCmd(),
		newInspectCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "rbnc:", err)
		stop()
		os.Exit(1)
	}
}
