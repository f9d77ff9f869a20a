package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/neurlang/rbnc/datasets"
	"github.com/neurlang/rbnc/structure"
)

func newGenerateCmd() *cobra.Command {
	var (
		members, features, maxParents, class, cardinality int
		seed                                              uint64
		output, schemaOut                                 string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random ensemble structure file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if members <= 0 || features <= 0 {
				return fmt.Errorf("members and features must be positive")
			}
			if !cmd.Flags().Changed("class") {
				class = features
			}
			if class < 0 || class > features {
				return fmt.Errorf("class %d out of range 0..%d", class, features)
			}
			// the class takes one of the features+1 attribute slots, wherever it sits
			e := structure.Generate(structure.NewGenerator(seed), members, features+1, maxParents, class)
			if err := structure.WriteStructuresToFile(output, e); err != nil {
				return err
			}
			if schemaOut != "" {
				if err := datasets.WriteSchema(schemaOut, datasets.UniformSchema(features+1, cardinality, class)); err != nil {
					return err
				}
			}
			slog.Info("structures written", "file", output, "members", members, "seed", seed)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&members, "members", "m", 10, "ensemble size")
	f.IntVarP(&features, "features", "f", 0, "number of attributes besides the class")
	f.IntVarP(&maxParents, "max-parents", "k", 2, "parents per attribute besides the class")
	f.IntVar(&class, "class", 0, "class attribute index, defaults to the last attribute")
	f.Uint64Var(&seed, "seed", 1, "random seed")
	f.StringVarP(&output, "output", "o", "ensemble.bin", "structure file")
	f.StringVar(&schemaOut, "schema", "", "also write a uniform schema file")
	f.IntVar(&cardinality, "cardinality", 2, "attribute cardinality of the written schema")
	return cmd
}
