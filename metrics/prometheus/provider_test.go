package prometheus

import (
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/merge/metrics"
)

func TestProvider_Counter(t *testing.T) {
	reg := prom.NewRegistry()
	p := NewProvider("test", reg)

	c := p.Counter(metrics.PoolSubmitted, metrics.WithDescription("jobs accepted"))
	c.Add(2)
	c.Add(-5) // ignored
	p.Counter(metrics.PoolSubmitted).Add(1)

	require.NoError(t, p.Err())
	require.Equal(t, 3.0, testutil.ToFloat64(p.collectors[metrics.PoolSubmitted]))
	n, err := testutil.GatherAndCount(reg, "test_"+metrics.PoolSubmitted)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestProvider_GaugeAndHistogram(t *testing.T) {
	reg := prom.NewRegistry()
	p := NewProvider("", reg, WithBuckets([]float64{0.1, 1}))

	g := p.UpDownCounter(metrics.PoolQueueDepth)
	g.Add(5)
	g.Add(-2)
	require.Equal(t, 3.0, testutil.ToFloat64(p.collectors[metrics.PoolQueueDepth]))

	h := p.Histogram(metrics.BatchDuration)
	h.Record(0.05)
	h.Record(0.5)
	n, err := testutil.GatherAndCount(reg, "merge_"+metrics.BatchDuration)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, p.Err())
}

func TestProvider_SharedRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	p1 := NewProvider("shared", reg)
	p2 := NewProvider("shared", reg)

	p1.Counter(metrics.BatchStarted).Add(1)
	p2.Counter(metrics.BatchStarted).Add(1)

	require.NoError(t, p1.Err())
	require.NoError(t, p2.Err())
	require.Equal(t, 2.0, testutil.ToFloat64(p1.collectors[metrics.BatchStarted]))
}

func TestProvider_KindMismatch(t *testing.T) {
	p := NewProvider("test", prom.NewRegistry())

	p.Counter("dual").Add(1)
	require.NotPanics(t, func() { p.Histogram("dual").Record(1) })
	require.Error(t, p.Err())
}
