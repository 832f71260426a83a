// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package aggregators

import (
	"io"

	"github.com/cockroachdb/pebble"
)

const groupCountMergerName = "group_count_merger"

var groupCountMerger = &pebble.Merger{
	Name: groupCountMergerName,
	Merge: func(_, value []byte) (pebble.ValueMerger, error) {
		var merger countMerger
		if err := merger.MergeNewer(value); err != nil {
			return nil, err
		}
		return &merger, nil
	},
}

// countMerger sums the row counts of a group.
type countMerger struct {
	count uint64
}

func (m *countMerger) MergeNewer(value []byte) error {
	count, err := decodeCount(value)
	if err != nil {
		return err
	}
	m.count += count
	return nil
}

func (m *countMerger) MergeOlder(value []byte) error {
	return m.MergeNewer(value)
}

func (m *countMerger) Finish(includesBase bool) ([]byte, io.Closer, error) {
	return encodeCount(m.count), nil, nil
}
