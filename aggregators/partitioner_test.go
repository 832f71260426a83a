// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package aggregators

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastic/apm-rowhash/columnar"
	"github.com/elastic/apm-rowhash/rowhash"
)

func newServiceBatch(t testing.TB, rows, services int) *columnar.Batch {
	t.Helper()
	names := make([]string, rows)
	ids := make([]int64, rows)
	for i := range names {
		names[i] = fmt.Sprintf("svc%d", i%services)
		ids[i] = int64(i % services)
	}
	b, err := columnar.NewBatch(columnar.NewStrings(names, nil), columnar.NewFixed(ids, nil))
	require.NoError(t, err)
	return b
}

func newServiceGenerator(t testing.TB) *rowhash.Generator {
	t.Helper()
	g, err := rowhash.New(
		[]columnar.Type{columnar.Varchar, columnar.BigInt},
		[]int{0, 1},
		rowhash.DefaultRegistry(),
	)
	require.NoError(t, err)
	return g
}

func TestHashPartitioner(t *testing.T) {
	p := NewHashPartitioner(4)
	assert.Equal(t, 4, p.PartitionCount())
	for _, h := range []int64{0, 1, -1, 1 << 62, -(1 << 62)} {
		assert.Less(t, p.Partition(h), uint16(4))
		assert.Equal(t, p.Partition(h), p.Partition(h))
	}
	assert.Equal(t, uint16(1), p.Partition(5))
	// -1 is the largest unsigned hash, 2^64-1, which is 3 modulo 4.
	assert.Equal(t, uint16(3), p.Partition(-1))

	assert.Equal(t, 1, NewHashPartitioner(0).PartitionCount())
	assert.Equal(t, uint16(0), NewHashPartitioner(0).Partition(12345))
}

func TestPartitionBatch(t *testing.T) {
	const rows = 5000
	b := newServiceBatch(t, rows, 50)
	g := newServiceGenerator(t)
	p := NewHashPartitioner(8)

	expected := make([][]int, 8)
	for pos := 0; pos < rows; pos++ {
		id := p.Partition(g.HashPosition(pos, b))
		expected[id] = append(expected[id], pos)
	}

	for _, workers := range []int{0, 1, 3, 16, rows * 2} {
		t.Run(fmt.Sprintf("workers_%d", workers), func(t *testing.T) {
			actual, err := p.PartitionBatch(context.Background(), g, b, workers)
			require.NoError(t, err)
			if diff := cmp.Diff(expected, actual); diff != "" {
				t.Errorf("partitions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPartitionBatchSameGroupSamePartition(t *testing.T) {
	b := newServiceBatch(t, 1000, 10)
	g := newServiceGenerator(t)
	partitions, err := NewHashPartitioner(4).PartitionBatch(context.Background(), g, b, 4)
	require.NoError(t, err)

	seen := make(map[string]int)
	for id, positions := range partitions {
		for _, pos := range positions {
			name := b.Column(0).(*columnar.Strings).Value(pos)
			if prev, ok := seen[name]; ok {
				assert.Equal(t, prev, id, "group %s split across partitions", name)
			}
			seen[name] = id
		}
	}
	assert.Len(t, seen, 10)
}

func TestPartitionBatchEmpty(t *testing.T) {
	b, err := columnar.NewBatch(columnar.NewStrings(nil, nil), columnar.NewFixed([]int64(nil), nil))
	require.NoError(t, err)
	partitions, err := NewHashPartitioner(3).PartitionBatch(context.Background(), newServiceGenerator(t), b, 4)
	require.NoError(t, err)
	assert.Equal(t, [][]int{nil, nil, nil}, partitions)
}

func TestPartitionBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashPartitioner(2).PartitionBatch(ctx, newServiceGenerator(t), newServiceBatch(t, 10, 2), 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPartitionStats(t *testing.T) {
	stats := NewPartitionStats([][]int{
		{0, 1, 2, 3, 4, 5},
		{6, 7},
		{8, 9, 10, 11},
	})
	assert.Equal(t, 3, stats.Partitions)
	assert.Equal(t, int64(12), stats.Rows)
	assert.Equal(t, int64(2), stats.Min)
	assert.Equal(t, int64(6), stats.Max)
	assert.Equal(t, int64(6), stats.P99)
	assert.InDelta(t, 4.0, stats.Mean, 0.001)
	assert.InDelta(t, 1.5, stats.Skew(), 0.001)

	assert.Equal(t, 0.0, PartitionStats{}.Skew())
}
