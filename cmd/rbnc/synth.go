package main

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/neurlang/rbnc/datasets"
)

func newSynthCmd() *cobra.Command {
	var (
		instances, features int
		seed                uint64
		output              string
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write random binary instances with the class last",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if instances < 0 || features <= 0 {
				return fmt.Errorf("invalid instance or feature count")
			}
			var w = cmd.OutOrStdout()
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			bw := bufio.NewWriter(w)
			rng := rand.New(rand.NewPCG(seed, seed+1))
			if err := datasets.GenerateInstances(rng, bw, instances, features); err != nil {
				return err
			}
			return bw.Flush()
		},
	}
	f := cmd.Flags()
	f.IntVarP(&instances, "instances", "n", 1000, "number of instances")
	f.IntVarP(&features, "features", "f", 0, "number of attributes besides the class")
	f.Uint64Var(&seed, "seed", 1, "random seed")
	f.StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	return cmd
}
