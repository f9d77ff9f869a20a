// Package metrics exposes prometheus counters of the aggregation
package metrics

import "time"

import "github.com/prometheus/client_golang/prometheus"
import "github.com/prometheus/client_golang/prometheus/promauto"

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	RecordsCounted     prometheus.Counter
	RecordsRejected    prometheus.Counter
	PartitionsDone     prometheus.Counter
	PartitionsFailed   prometheus.Counter
	PartialsMerged     prometheus.Counter
	PartitionDurations prometheus.Histogram
}

// New registers the collectors on reg. Use prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RecordsCounted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rbnc",
			Name:      "records_counted_total",
			Help:      "Records counted into the ensemble tables.",
		}),
		RecordsRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rbnc",
			Name:      "records_rejected_total",
			Help:      "Records rejected as invalid.",
		}),
		PartitionsDone: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rbnc",
			Name:      "partitions_completed_total",
			Help:      "Partitions scanned to the end.",
		}),
		PartitionsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rbnc",
			Name:      "partitions_failed_total",
			Help:      "Partitions whose contribution was discarded.",
		}),
		PartialsMerged: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rbnc",
			Name:      "partials_merged_total",
			Help:      "Partial tables folded into a reducer.",
		}),
		PartitionDurations: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rbnc",
			Name:      "partition_scan_seconds",
			Help:      "Time spent scanning one partition.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

func (m *Metrics) Counted(n int64) {
	if m != nil {
		m.RecordsCounted.Add(float64(n))
	}
}

func (m *Metrics) Rejected(n int64) {
	if m != nil {
		m.RecordsRejected.Add(float64(n))
	}
}

func (m *Metrics) Merged() {
	if m != nil {
		m.PartialsMerged.Inc()
	}
}

// Partition records a finished partition scan
func (m *Metrics) Partition(start time.Time, err error) {
	if m == nil {
		return
	}
	m.PartitionDurations.Observe(time.Since(start).Seconds())
	if err != nil {
		m.PartitionsFailed.Inc()
	} else {
		m.PartitionsDone.Inc()
	}
}
