package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/neurlang/rbnc/aggregate"
	"github.com/neurlang/rbnc/config"
	"github.com/neurlang/rbnc/datasets"
	"github.com/neurlang/rbnc/metrics"
	"github.com/neurlang/rbnc/stats"
	"github.com/neurlang/rbnc/store"
	"github.com/neurlang/rbnc/structure"
)

func newCountCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "count <job.yaml>",
		Short: "Count the sufficient statistics of a job and write the table file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			logger := slog.Default()
			if !cmd.Flags().Changed("log-level") && !cmd.Flags().Changed("log-format") {
				logger = slog.New(cfg.Log.Handler(cmd.ErrOrStderr()))
			}
			compression, err := cfg.CompressionKind()
			if err != nil {
				return err
			}
			schema, err := datasets.LoadSchema(cfg.Schema)
			if err != nil {
				return err
			}
			ensemble, err := structure.ReadStructuresFromFile(cfg.Structures)
			if err != nil {
				return err
			}
			splitter, err := datasets.NewSplitter(cfg.SplitPattern)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			job := aggregate.Job{
				Schema:       schema,
				Ensemble:     ensemble,
				Partitions:   aggregate.FilePartitions(cfg.Inputs...),
				Workers:      cfg.Workers,
				Splitter:     splitter,
				Strict:       cfg.Strict,
				KeepPartials: cfg.Store.Keep,
				Logger:       logger,
				Metrics:      metrics.New(reg),
			}
			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics server", "error", err)
					}
				}()
				defer srv.Close()
			}
			if cfg.Store.Enabled {
				s, err := store.Open(cfg.Store.StoreConfig(logger.With("component", "store")))
				if err != nil {
					return err
				}
				defer s.Close()
				job.Store = s
			}

			rep, err := aggregate.Run(cmd.Context(), job)
			if err != nil {
				return err
			}
			if err := stats.WriteFile(cfg.Output, rep.Partials, compression); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: %d records, %d rejected, %d members written to %s\n",
				rep.Run, rep.Records, rep.Rejected, len(rep.Partials), cfg.Output)
			for _, p := range rep.Failed() {
				fmt.Fprintf(out, "failed partition %s: %v\n", p.Name, p.Err)
			}
			if failed := len(rep.Failed()); failed > 0 {
				return fmt.Errorf("%d of %d partitions failed and were excluded", failed, len(rep.Partitions))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while counting")
	return cmd
}
