package aggregate

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/rbnc/counting"
	"github.com/neurlang/rbnc/datasets"
	"github.com/neurlang/rbnc/metrics"
	"github.com/neurlang/rbnc/stats"
	"github.com/neurlang/rbnc/store"
	"github.com/neurlang/rbnc/structure"
	"github.com/neurlang/rbnc/table"
)

var schema = datasets.UniformSchema(8, 2, 7)

func ensemble() structure.Ensemble {
	return structure.Generate(structure.NewGenerator(42), 3, 7, 2, 7)
}

func shards(t *testing.T, n, size int) []string {
	var out []string
	for i := 0; i < n; i++ {
		var buf bytes.Buffer
		require.NoError(t, datasets.GenerateInstances(rand.New(rand.NewPCG(uint64(i), 9)), &buf, size, 7))
		out = append(out, buf.String())
	}
	return out
}

// single pass over the concatenation of the given shards
func reference(t *testing.T, data ...string) []stats.Partial {
	c, err := counting.New(schema, ensemble())
	require.NoError(t, err)
	for _, d := range data {
		_, err := c.Scan(context.Background(), strings.NewReader(d), 0)
		require.NoError(t, err)
	}
	return c.Partials()
}

func assertSame(t *testing.T, want, got []stats.Partial) {
	require.Len(t, got, len(want))
	for m := range want {
		assert.Equal(t, want[m].Member, got[m].Member)
		assert.Equal(t, want[m].ClassCounts.Items(), got[m].ClassCounts.Items(), "member %d", m)
		assert.Equal(t, table.Slices(want[m].Table), table.Slices(got[m].Table), "member %d", m)
	}
}

func partitions(data []string) (out []Partition) {
	for i, d := range data {
		out = append(out, ReaderPartition(string(rune('a'+i)), strings.NewReader(d)))
	}
	return
}

func TestRunMatchesSinglePass(t *testing.T) {
	data := shards(t, 7, 40)
	var m = metrics.New(prometheus.NewRegistry())
	rep, err := Run(context.Background(), Job{
		Schema:     schema,
		Ensemble:   ensemble(),
		Partitions: partitions(data),
		Workers:    3,
		Metrics:    m,
	})
	require.NoError(t, err)
	assertSame(t, reference(t, data...), rep.Partials)
	assert.EqualValues(t, 280, rep.Records)
	assert.Empty(t, rep.Failed())
	for _, p := range rep.Partials {
		assert.Equal(t, 280.0, p.Total())
	}
	assert.Equal(t, 7.0, testutil.ToFloat64(m.PartitionsDone))
	assert.Equal(t, 280.0, testutil.ToFloat64(m.RecordsCounted))
}

func TestRunDropsFailedPartitions(t *testing.T) {
	data := shards(t, 4, 25)
	parts := partitions(data)
	parts = append(parts,
		Partition{Name: "broken", Open: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(io.MultiReader(strings.NewReader(data[0]), iotest.ErrReader(errors.New("disk gone")))), nil
		}},
		Partition{Name: "missing", Open: func(context.Context) (io.ReadCloser, error) {
			return nil, os.ErrNotExist
		}},
	)
	for _, withStore := range []bool{false, true} {
		var job = Job{Schema: schema, Ensemble: ensemble(), Partitions: parts}
		if withStore {
			s, err := store.Open(store.InMemoryConfig())
			require.NoError(t, err)
			defer s.Close()
			job.Store = s
			// readers are consumed by the first run
			job.Partitions = append(partitions(data), parts[4:]...)
		}
		rep, err := Run(context.Background(), job)
		require.NoError(t, err)
		failed := rep.Failed()
		require.Len(t, failed, 2)
		assert.Equal(t, "broken", failed[0].Name)
		assert.EqualValues(t, 25, failed[0].Records)
		assert.ErrorIs(t, failed[1].Err, os.ErrNotExist)
		assertSame(t, reference(t, data...), rep.Partials)
		assert.EqualValues(t, 100, rep.Records)
	}
}

func TestRunWithStore(t *testing.T) {
	data := shards(t, 5, 30)
	s, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()

	rep, err := Run(context.Background(), Job{
		Schema: schema, Ensemble: ensemble(), Partitions: partitions(data), Store: s, KeepPartials: true,
	})
	require.NoError(t, err)
	assertSame(t, reference(t, data...), rep.Partials)

	members, err := s.Members(rep.Run)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, members)
	stored, err := s.Partials(rep.Run, 1)
	require.NoError(t, err)
	assert.Len(t, stored, 5)

	rep, err = Run(context.Background(), Job{
		Schema: schema, Ensemble: ensemble(), Partitions: partitions(data), Store: s,
	})
	require.NoError(t, err)
	members, err = s.Members(rep.Run)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestRunStrict(t *testing.T) {
	data := shards(t, 2, 10)
	data[1] += "1,0,1,0,0,1,0,5\n"
	rep, err := Run(context.Background(), Job{
		Schema: schema, Ensemble: ensemble(), Partitions: partitions(data), Strict: true,
	})
	require.NoError(t, err)
	require.Len(t, rep.Failed(), 1)
	assert.ErrorIs(t, rep.Failed()[0].Err, ErrRejectedRecords)
	assert.ErrorIs(t, rep.Failed()[0].Err, datasets.ErrInvalidRecord)
	assertSame(t, reference(t, data[0]), rep.Partials)

	rep, err = Run(context.Background(), Job{
		Schema: schema, Ensemble: ensemble(), Partitions: partitions(data),
	})
	require.NoError(t, err)
	assert.Empty(t, rep.Failed())
	assert.EqualValues(t, 1, rep.Rejected)
	assertSame(t, reference(t, data...), rep.Partials)
}

func TestRunNoPartitions(t *testing.T) {
	rep, err := Run(context.Background(), Job{Schema: schema, Ensemble: ensemble()})
	require.NoError(t, err)
	require.Len(t, rep.Partials, 3)
	for _, p := range rep.Partials {
		assert.Equal(t, 0.0, table.Sum(p.Table))
	}
}

func TestRunInvalidJob(t *testing.T) {
	_, err := Run(context.Background(), Job{Schema: schema, Ensemble: structure.Ensemble{{9: structure.Modeled(7)}}})
	var sme *structure.SchemaMismatchError
	assert.True(t, errors.As(err, &sme))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, Job{Schema: schema, Ensemble: ensemble(), Partitions: partitions(shards(t, 3, 5))})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilePartitions(t *testing.T) {
	data := shards(t, 3, 20)
	dir := t.TempDir()
	names := []string{
		filepath.Join(dir, "plain.csv"),
		filepath.Join(dir, "gzipped.csv.gz"),
		filepath.Join(dir, "zstd.csv.zst"),
	}
	require.NoError(t, os.WriteFile(names[0], []byte(data[0]), 0644))

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write([]byte(data[1]))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	require.NoError(t, os.WriteFile(names[1], gz.Bytes(), 0644))

	var zs bytes.Buffer
	zw, err := zstd.NewWriter(&zs)
	require.NoError(t, err)
	_, err = zw.Write([]byte(data[2]))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(names[2], zs.Bytes(), 0644))

	rep, err := Run(context.Background(), Job{Schema: schema, Ensemble: ensemble(), Partitions: FilePartitions(names...)})
	require.NoError(t, err)
	assert.Empty(t, rep.Failed())
	assertSame(t, reference(t, data...), rep.Partials)
}
