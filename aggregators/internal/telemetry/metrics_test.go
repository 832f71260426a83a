// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package telemetry

import (
	"context"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetrics(t *testing.T) {
	provider := func() *pebble.Metrics {
		m := &pebble.Metrics{}
		m.Flush.Count = 2
		m.Compact.Count = 3
		m.MemTable.Size = 1024
		return m
	}
	rdr := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(rdr))
	m, err := NewMetrics(provider, WithMeterProvider(mp))
	require.NoError(t, err)

	ctx := context.Background()
	m.RowsHashed.Add(ctx, 10)

	var rm metricdata.ResourceMetrics
	require.NoError(t, rdr.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	got := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics[0].Metrics {
		switch d := sm.Data.(type) {
		case metricdata.Sum[int64]:
			got[sm.Name] = d.DataPoints[0].Value
		case metricdata.Gauge[int64]:
			got[sm.Name] = d.DataPoints[0].Value
		}
	}
	assert.Equal(t, int64(10), got["rows.hashed"])
	assert.Equal(t, int64(2), got["pebble.flushes"])
	assert.Equal(t, int64(3), got["pebble.compactions"])
	assert.Equal(t, int64(1024), got["pebble.memtable.size"])
	assert.Contains(t, got, "pebble.disk.usage")

	require.NoError(t, m.CleanUp())
}
