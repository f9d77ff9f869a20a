package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Counted(5)
	m.Rejected(2)
	m.Merged()
	m.Partition(time.Now(), nil)
	m.Partition(time.Now(), errors.New("boom"))

	assert.Equal(t, 5.0, testutil.ToFloat64(m.RecordsCounted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PartialsMerged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PartitionsDone))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PartitionsFailed))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Counted(1)
		m.Rejected(1)
		m.Merged()
		m.Partition(time.Now(), nil)
	})
}
