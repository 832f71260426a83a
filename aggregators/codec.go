// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package aggregators

import (
	"encoding/binary"
	"errors"
)

const (
	groupKeyHeaderSize = 2 + 8
	countSize          = 8
)

// MarshalBinaryToSizedBuffer will marshal the group key into its binary
// representation. The encoded byte slice will be used as a key in pebble.
// The first 2 bytes of the encoded slice is the partition ID, the next 8
// bytes is the row hash followed by the encoded group values. The binary
// representation ensures that all entries are ordered by the partition ID
// first and then by the row hash compared as an unsigned integer.
func (k *GroupKey) MarshalBinaryToSizedBuffer(data []byte) error {
	if len(data) != k.SizeBinary() {
		return errors.New("failed to marshal due to incorrect sized buffer")
	}
	binary.BigEndian.PutUint16(data, k.PartitionID)
	binary.BigEndian.PutUint64(data[2:], uint64(k.Hash))
	copy(data[groupKeyHeaderSize:], k.Values)
	return nil
}

// AppendBinary appends the binary representation of the group key to dst.
func (k *GroupKey) AppendBinary(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, k.PartitionID)
	dst = binary.BigEndian.AppendUint64(dst, uint64(k.Hash))
	return append(dst, k.Values...)
}

// UnmarshalBinary will convert the byte encoded data into GroupKey. The
// decoded values are a copy of data.
func (k *GroupKey) UnmarshalBinary(data []byte) error {
	if len(data) < groupKeyHeaderSize {
		return errors.New("invalid encoded data of insufficient length")
	}
	k.PartitionID = binary.BigEndian.Uint16(data)
	k.Hash = int64(binary.BigEndian.Uint64(data[2:]))
	k.Values = append([]byte(nil), data[groupKeyHeaderSize:]...)
	return nil
}

// SizeBinary returns the size of the byte array required to encode the
// group key.
func (k *GroupKey) SizeBinary() int {
	// 2 bytes for partition ID
	// 8 bytes for row hash
	return groupKeyHeaderSize + len(k.Values)
}

// partitionBounds returns the key range holding all groups of partition.
// A nil upper bound means unbounded.
func partitionBounds(partitionID uint16) (lb, ub []byte) {
	lb = binary.BigEndian.AppendUint16(nil, partitionID)
	if partitionID < ^uint16(0) {
		ub = binary.BigEndian.AppendUint16(nil, partitionID+1)
	}
	return lb, ub
}

func encodeCount(count uint64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, countSize), count)
}

func decodeCount(data []byte) (uint64, error) {
	if len(data) != countSize {
		return 0, errors.New("invalid encoded count")
	}
	return binary.BigEndian.Uint64(data), nil
}
