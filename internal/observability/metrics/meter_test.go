package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// TestPurpose: Validates that instruments created by the meter are recorded by the SDK provider.
// Scope: Unit Test
// Expected: A counter increment and a histogram sample are collected under their names.
// Test Case ID: MET-01
func TestMeter_RecordsIntoProvider(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	m, err := New(ctx, Config{Enabled: true, ServiceName: "tenantry-test", Reader: reader})
	require.NoError(t, err)
	defer m.Shutdown(ctx)

	counter, err := m.CreateCounter("test.requests", "requests")
	require.NoError(t, err)
	histogram, err := m.CreateHistogram("test.latency", "latency", "ms")
	require.NoError(t, err)

	counter.Add(ctx, 3)
	histogram.Record(ctx, 12.5)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	names := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			names[md.Name] = md.Data
		}
	}
	require.Contains(t, names, "test.requests")
	require.Contains(t, names, "test.latency")

	sum, ok := names["test.requests"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
}

func TestMeter_Disabled(t *testing.T) {
	m, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, m.Shutdown(context.Background()))

	counter, err := m.CreateCounter("noop.requests", "requests")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
}
