// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package aggregators

import (
	"context"
	"runtime"

	"github.com/HdrHistogram/hdrhistogram-go"
	"golang.org/x/sync/errgroup"

	"github.com/elastic/apm-rowhash/columnar"
	"github.com/elastic/apm-rowhash/rowhash"
)

// positions hashed between context checks
const cancelCheckInterval = 1024

// HashPartitioner is a hash based partitioner for row hashes. The
// partitioner partitions the rows into buckets with number of buckets
// limited by the passed argument.
type HashPartitioner struct {
	maxPartitions uint16
}

// NewHashPartitioner creates a new instance of the HashPartitioner. Zero
// partitions is treated as one.
func NewHashPartitioner(maxPartitions uint16) *HashPartitioner {
	if maxPartitions == 0 {
		maxPartitions = 1
	}
	return &HashPartitioner{
		maxPartitions: maxPartitions,
	}
}

// Partition generates an ID to be used as partition ID given a row hash.
func (p *HashPartitioner) Partition(hash int64) uint16 {
	return uint16(uint64(hash) % uint64(p.maxPartitions))
}

// PartitionCount returns the number of partitions.
func (p *HashPartitioner) PartitionCount() int {
	return int(p.maxPartitions)
}

// PartitionBatch assigns every position of batch to a partition using the
// row hash computed by gen. Positions are hashed by up to workers
// goroutines, a non positive value uses GOMAXPROCS. The positions of each
// partition are returned in ascending order.
func (p *HashPartitioner) PartitionBatch(
	ctx context.Context,
	gen rowhash.HashGenerator,
	batch *columnar.Batch,
	workers int,
) ([][]int, error) {
	rows := batch.PositionCount()
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > rows {
		workers = rows
	}

	assigned := make([]uint16, rows)
	if workers > 0 {
		chunk := (rows + workers - 1) / workers
		g, ctx := errgroup.WithContext(ctx)
		for start := 0; start < rows; start += chunk {
			end := min(start+chunk, rows)
			g.Go(func() error {
				for pos := start; pos < end; pos++ {
					if (pos-start)%cancelCheckInterval == 0 {
						if err := ctx.Err(); err != nil {
							return err
						}
					}
					assigned[pos] = p.Partition(gen.HashPosition(pos, batch))
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	partitions := make([][]int, p.maxPartitions)
	for pos, id := range assigned {
		partitions[id] = append(partitions[id], pos)
	}
	return partitions, nil
}

// PartitionStats summarizes the distribution of rows over partitions.
type PartitionStats struct {
	Partitions int
	Rows       int64
	Min        int64
	Max        int64
	Mean       float64
	P99        int64
}

// Skew returns the ratio of the largest partition to the mean partition
// size, 1 for a perfectly even distribution.
func (s PartitionStats) Skew() float64 {
	if s.Mean == 0 {
		return 0
	}
	return float64(s.Max) / s.Mean
}

// NewPartitionStats records the sizes of partitions.
func NewPartitionStats(partitions [][]int) PartitionStats {
	var rows int64
	for _, p := range partitions {
		rows += int64(len(p))
	}
	hist := hdrhistogram.New(1, max(rows, 2), 3)
	for _, p := range partitions {
		// Sizes are bounded by rows, which is the histogram maximum.
		_ = hist.RecordValue(int64(len(p)))
	}
	return PartitionStats{
		Partitions: len(partitions),
		Rows:       rows,
		Min:        hist.Min(),
		Max:        hist.Max(),
		Mean:       hist.Mean(),
		P99:        hist.ValueAtQuantile(99),
	}
}
