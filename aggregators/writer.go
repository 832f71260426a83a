// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package aggregators

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/elastic/apm-rowhash/columnar"
)

// ErrWriterClosed is returned by Writer methods after the writer is closed.
var ErrWriterClosed = errors.New("writer is closed")

// Writer provides methods for writing grouped rows to Pebble.
type Writer struct {
	aggregator *Aggregator

	mu    sync.Mutex
	batch *pebble.Batch
}

// Close commits and closes the writer's batch,
// and removes the writer from the aggregator.
//
// Writers must not be used again after Close is called.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.batch == nil {
		return nil
	}
	batch := w.batch
	w.batch = nil
	w.aggregator.writers.Delete(w)
	return errors.Join(
		batch.Commit(w.aggregator.writeOptions),
		batch.Close(),
	)
}

// Commit replaces the writer's batch, and commits any buffered writes.
// Commit is a no-op once the writer or its aggregator is closed.
func (w *Writer) Commit() error {
	w.aggregator.mu.RLock()
	defer w.aggregator.mu.RUnlock()

	batch, ok := w.takeBatch()
	if !ok {
		return nil
	}
	return errors.Join(batch.Commit(w.aggregator.writeOptions), batch.Close())
}

// takeBatch locks the writer, and if its batch is non-empty, replaces
// the batch with a new one and returns the old one. If the batch is
// empty, a nil batch is returned.
func (w *Writer) takeBatch() (*pebble.Batch, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	batch := w.batch
	if batch == nil || batch.Empty() {
		return nil, false
	}
	w.batch = w.aggregator.db.NewBatch()
	return batch, true
}

// WriteBatch counts every row of batch into the group of its hash channel
// values. The hash channel columns must implement columnar.KeyAppender and
// hold the values of their configured hash channel type.
//
// This function will return an error if the writer has been closed.
func (w *Writer) WriteBatch(ctx context.Context, batch *columnar.Batch) error {
	w.aggregator.mu.RLock()
	defer w.aggregator.mu.RUnlock()

	bytesIn, err := w.writeBatch(batch)
	metrics := w.aggregator.metrics
	metrics.RequestsTotal.Add(ctx, 1)
	metrics.BytesIngested.Add(ctx, int64(bytesIn))
	if err != nil {
		metrics.RequestsFailed.Add(ctx, 1)
		return fmt.Errorf("failed batch aggregation: %w", err)
	}
	metrics.RowsHashed.Add(ctx, int64(batch.PositionCount()))
	return nil
}

// writeBatch returns the number of bytes ingested along with the error,
// if any.
func (w *Writer) writeBatch(batch *columnar.Batch) (_ int, resultErr error) {
	gen := w.aggregator.generator
	channels := gen.Channels()
	appenders := make([]columnar.KeyAppender, len(channels))
	for i, ch := range channels {
		if ch >= batch.ColumnCount() {
			return 0, fmt.Errorf("hash channel %d out of range for batch with %d columns", ch, batch.ColumnCount())
		}
		appender, ok := batch.Column(ch).(columnar.KeyAppender)
		if !ok {
			return 0, fmt.Errorf(
				"column %T of hash channel %d: %w",
				batch.Column(ch), ch, columnar.ErrUnsupportedKeyType,
			)
		}
		appenders[i] = appender
	}
	if err := gen.CheckColumns(batch); err != nil {
		return 0, err
	}
	groups, hashes, err := w.groupRows(batch, appenders)
	if err != nil {
		return 0, err
	}

	// We conditionally commit and close the batch if it is large enough after writing.
	// We do this after releasing the lock to avoid holding up other writers or readers.
	var commitBatch *pebble.Batch
	defer func() {
		if commitBatch == nil {
			return
		}
		resultErr = errors.Join(
			resultErr,
			commitBatch.Commit(w.aggregator.writeOptions),
			commitBatch.Close(),
		)
	}()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.batch == nil {
		return 0, ErrWriterClosed
	}

	var bytesIn int
	for key, count := range groups {
		op := w.batch.MergeDeferred(len(key), countSize)
		copy(op.Key, key)
		copy(op.Value, encodeCount(count))
		if err := op.Finish(); err != nil {
			return bytesIn, fmt.Errorf("failed to finalize merge operation: %w", err)
		}
		bytesIn += len(key) + countSize
	}
	w.aggregator.insertHashes(hashes)
	if w.batch.Len() >= dbCommitThresholdBytes {
		commitBatch = w.batch
		w.batch = w.aggregator.db.NewBatch()
	}
	return bytesIn, nil
}

// groupRows counts the rows of batch per group key. Rows of the same group
// are counted in memory first so that every group is merged once per batch.
// A panic raised by a hash operator is returned as an error.
func (w *Writer) groupRows(
	batch *columnar.Batch,
	appenders []columnar.KeyAppender,
) (groups map[string]uint64, hashes []int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			groups, hashes = nil, nil
			err = fmt.Errorf("failed to hash batch: %v", r)
		}
	}()

	gen := w.aggregator.generator
	rows := batch.PositionCount()
	hashes = make([]int64, rows)
	groups = make(map[string]uint64)
	var keyBuf []byte
	for pos := 0; pos < rows; pos++ {
		hash := gen.HashPosition(pos, batch)
		hashes[pos] = hash
		key := GroupKey{
			PartitionID: w.aggregator.cfg.Partitioner.Partition(hash),
			Hash:        hash,
		}
		keyBuf = key.AppendBinary(keyBuf[:0])
		for _, appender := range appenders {
			keyBuf = appender.AppendKey(keyBuf, pos)
		}
		groups[string(keyBuf)]++
	}
	return groups, hashes, nil
}
