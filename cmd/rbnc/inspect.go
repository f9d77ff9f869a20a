package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neurlang/rbnc/stats"
	"github.com/neurlang/rbnc/table"
)

func newInspectCmd() *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "inspect <table file>",
		Short: "Print a summary of a table file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			partials, err := stats.ReadFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range partials {
				var modeled int
				for _, a := range p.Table.Items() {
					if a.IsPresent() {
						modeled++
					}
				}
				fmt.Fprintf(out, "member %d: %g records, class counts %v, %d of %d attributes modeled, %g counts\n",
					p.Member, p.Total(), p.ClassCounts.Items(), modeled, p.Table.Len(), table.Sum(p.Table))
				if dump {
					fmt.Fprintln(out, table.String(p.Table))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "print every table")
	return cmd
}
