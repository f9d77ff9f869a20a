// Package aggregate runs one counting job: every partition is counted by its own
// worker and the per partition tables are merged into one table per ensemble member.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/neurlang/rbnc/combiner"
	"github.com/neurlang/rbnc/counting"
	"github.com/neurlang/rbnc/datasets"
	"github.com/neurlang/rbnc/metrics"
	"github.com/neurlang/rbnc/parallel"
	"github.com/neurlang/rbnc/stats"
	"github.com/neurlang/rbnc/store"
	"github.com/neurlang/rbnc/structure"
)

// ErrRejectedRecords fails a partition in strict mode
var ErrRejectedRecords = errors.New("partition has rejected records")

// Job describes one aggregation
type Job struct {
	Schema     datasets.Schema
	Ensemble   structure.Ensemble
	Partitions []Partition

	// Workers limits the concurrently scanned partitions, parallel.Workers() if zero
	Workers int

	// Splitter splits record lines, the default splitter if nil
	Splitter *datasets.Splitter

	// Strict fails a partition that has any rejected record
	Strict bool

	// Store, if set, receives the partials of every partition before the
	// merge stage reads them back.
	Store *store.Store

	// KeepPartials keeps the stored partials after the run
	KeepPartials bool

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// PartitionReport describes the outcome of one partition
type PartitionReport struct {
	Index    int
	Name     string
	Records  int64
	Rejected int64

	// FirstRejected is the first invalid record error
	FirstRejected error

	// Err is set when the partition failed and its counts were dropped
	Err error
}

// Report is the outcome of a job
type Report struct {
	Run uuid.UUID

	// Partials holds one merged partial per ensemble member
	Partials []stats.Partial

	Partitions []PartitionReport

	Records  int64
	Rejected int64
}

// Failed lists the partitions whose counts were dropped
func (r *Report) Failed() (out []PartitionReport) {
	for _, p := range r.Partitions {
		if p.Err != nil {
			out = append(out, p)
		}
	}
	return
}

// Run counts every partition and merges the results. A failed partition is
// recorded in the report and contributes nothing. Run itself fails only on
// invalid job input, on cancellation, or when the merge stage fails.
func Run(ctx context.Context, job Job) (*Report, error) {
	var logger = job.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var opts = []counting.Option{counting.WithLogger(logger), counting.WithMetrics(job.Metrics)}
	if job.Splitter != nil {
		opts = append(opts, counting.WithSplitter(job.Splitter))
	}

	// every member is present in the result even when no partition succeeds
	zero, err := counting.New(job.Schema, job.Ensemble, opts...)
	if err != nil {
		return nil, err
	}
	var reducer = combiner.NewReducer(job.Metrics)
	if err := reducer.AddAll(zero.Partials()); err != nil {
		return nil, err
	}

	var report = &Report{
		Run:        uuid.New(),
		Partitions: make([]PartitionReport, len(job.Partitions)),
	}
	logger = logger.With("run", report.Run.String())
	logger.Info("aggregation started",
		"partitions", len(job.Partitions),
		"members", len(job.Ensemble),
		"store", job.Store != nil)

	err = parallel.ForEach(ctx, len(job.Partitions), job.Workers, func(ctx context.Context, i int) error {
		var pr = &report.Partitions[i]
		pr.Index, pr.Name = i, job.Partitions[i].Name
		start := time.Now()
		partials, err := countPartition(ctx, job, opts, pr)
		if err == nil {
			if job.Store != nil {
				err = job.Store.PutPartition(report.Run, i, partials)
			} else if err = reducer.AddAll(partials); err != nil {
				// counters built from one schema and ensemble always agree in shape
				return fmt.Errorf("partition %s: %w", pr.Name, err)
			}
		}
		job.Metrics.Partition(start, err)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			pr.Err = err
			logger.Warn("partition failed", "partition", pr.Name, "error", err)
			if job.Store != nil {
				if derr := job.Store.DropPartition(report.Run, i); derr != nil {
					return fmt.Errorf("drop partition %s: %w", pr.Name, derr)
				}
			}
			return nil
		}
		logger.Debug("partition counted", "partition", pr.Name, "records", pr.Records, "rejected", pr.Rejected)
		return nil
	})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if job.Store != nil && !job.KeepPartials {
			job.Store.DropRun(report.Run)
		}
		return nil, err
	}

	if job.Store != nil {
		if err := mergeStored(job.Store, report.Run, reducer); err != nil {
			return nil, err
		}
		if !job.KeepPartials {
			if err := job.Store.DropRun(report.Run); err != nil {
				logger.Warn("dropping stored partials failed", "error", err)
			}
		}
	}

	report.Partials = reducer.Results()
	for _, p := range report.Partitions {
		if p.Err == nil {
			report.Records += p.Records
			report.Rejected += p.Rejected
		}
	}
	logger.Info("aggregation finished",
		"records", report.Records,
		"rejected", report.Rejected,
		"failed_partitions", len(report.Failed()))
	return report, nil
}

// countPartition scans one partition with a fresh counter
func countPartition(ctx context.Context, job Job, opts []counting.Option, pr *PartitionReport) ([]stats.Partial, error) {
	c, err := counting.New(job.Schema, job.Ensemble, opts...)
	if err != nil {
		return nil, err
	}
	r, err := job.Partitions[pr.Index].Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer r.Close()
	sum, err := c.Scan(ctx, r, 0)
	pr.Records, pr.Rejected, pr.FirstRejected = sum.Records, sum.Rejected, sum.FirstRejected
	if err != nil {
		return nil, err
	}
	if job.Strict && sum.Rejected > 0 {
		return nil, fmt.Errorf("%w: %d, first: %w", ErrRejectedRecords, sum.Rejected, sum.FirstRejected)
	}
	return c.Partials(), nil
}

// mergeStored folds every stored partial of the run into the reducer
func mergeStored(s *store.Store, run uuid.UUID, reducer *combiner.Reducer) error {
	members, err := s.Members(run)
	if err != nil {
		return err
	}
	for _, m := range members {
		err := s.Each(run, m, func(partition int, p stats.Partial) error {
			if err := reducer.Add(p); err != nil {
				return fmt.Errorf("partition %d: %w", partition, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
