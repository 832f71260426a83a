// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package aggregators

import (
	"fmt"

	"github.com/elastic/apm-rowhash/columnar"
)

// GroupKey models the key to store a group in the LSM tree. Rows with the
// same group values map to the same key. The row hash is part of the key
// so that groups are ordered by partition and hash, the encoded values
// resolve hash collisions.
type GroupKey struct {
	PartitionID uint16
	Hash        int64
	// Values holds the key encoding of the hash channel values of the
	// group, in channel order. See columnar.KeyAppender.
	Values []byte
}

// DecodeValues decodes the group values given the hash channel types.
// Null values are decoded as nil.
func (k *GroupKey) DecodeValues(types []columnar.Type) ([]any, error) {
	values := make([]any, 0, len(types))
	data := k.Values
	for i, t := range types {
		v, rest, err := columnar.DecodeKey(t, data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode value of channel %d: %w", i, err)
		}
		values = append(values, v)
		data = rest
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("%d trailing bytes after group values", len(data))
	}
	return values, nil
}
