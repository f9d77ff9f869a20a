package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/neurlang/rbnc/combiner"
	"github.com/neurlang/rbnc/stats"
)

func newMergeCmd() *cobra.Command {
	var output, compression string
	cmd := &cobra.Command{
		Use:   "merge <table file>...",
		Short: "Merge table files of the same ensemble",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := stats.ParseCompression(compression)
			if err != nil {
				return err
			}
			var r = combiner.NewReducer(nil)
			for _, name := range args {
				partials, err := stats.ReadFile(name)
				if err != nil {
					return err
				}
				if err := r.AddAll(partials); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				slog.Debug("merged", "file", name, "members", len(partials))
			}
			return stats.WriteFile(output, r.Results(), c)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "merged.rbnc", "merged table file")
	cmd.Flags().StringVar(&compression, "compression", stats.Zstd.String(), "none, snappy or zstd")
	return cmd
}
