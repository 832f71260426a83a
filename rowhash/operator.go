// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package rowhash

import (
	"fmt"
	"math/bits"

	"github.com/cespare/xxhash/v2"

	"github.com/elastic/apm-rowhash/columnar"
)

// HashOperator computes the hash of a single value of one value type.
//
// HashCodeNullSafe must return a stable value for null positions and must
// not mutate the column. Implementations are shared between generators and
// must be safe for concurrent use.
type HashOperator interface {
	HashCodeNullSafe(column columnar.Column, position int) int64
}

// HashOperatorFunc is a function type that implements HashOperator.
type HashOperatorFunc func(column columnar.Column, position int) int64

// HashCodeNullSafe calls HashOperatorFunc function.
func (f HashOperatorFunc) HashCodeNullSafe(column columnar.Column, position int) int64 {
	return f(column, position)
}

// valuer is satisfied by columns exposing typed values by position.
type valuer[T any] interface {
	Value(position int) T
}

// ColumnAcceptor is implemented by operators that can tell whether they
// are able to hash the values of a column.
type ColumnAcceptor interface {
	Accepts(column columnar.Column) bool
}

// ValueHashOperator returns an operator for columns exposing values of
// type T, hashing null positions to NullHashCode. The operator panics if
// the column does not expose values of type T, use Accepts to check a
// column first.
func ValueHashOperator[T any](hash func(T) int64) HashOperator {
	return valueHashOperator[T]{hash: hash}
}

type valueHashOperator[T any] struct {
	hash func(T) int64
}

func (o valueHashOperator[T]) Accepts(column columnar.Column) bool {
	_, ok := column.(valuer[T])
	return ok
}

func (o valueHashOperator[T]) HashCodeNullSafe(column columnar.Column, position int) int64 {
	if column.IsNull(position) {
		return NullHashCode
	}
	v, ok := column.(valuer[T])
	if !ok {
		var zero T
		panic(fmt.Sprintf("rowhash: column %T does not hold %T values", column, zero))
	}
	return o.hash(v.Value(position))
}

// HashInt64 mixes a 64 bit integer.
func HashInt64(v int64) int64 {
	return int64(bits.RotateLeft64(uint64(v)*0xC2B2AE3D27D4EB4F, 31) * 0x9E3779B97F4A7C87)
}

// HashFloat64 hashes the canonical bits of v, -0 and +0 hash alike as do
// all NaNs.
func HashFloat64(v float64) int64 {
	return HashInt64(int64(columnar.CanonicalFloat64Bits(v)))
}

// HashFloat32 hashes the canonical bits of v.
func HashFloat32(v float32) int64 {
	return HashInt64(int64(columnar.CanonicalFloat32Bits(v)))
}

// HashBool hashes a boolean.
func HashBool(v bool) int64 {
	if v {
		return 1231
	}
	return 1237
}

// HashString hashes text using xxhash64.
func HashString(v string) int64 {
	return int64(xxhash.Sum64String(v))
}

// HashBytes hashes bytes using xxhash64. Equal to HashString of the same
// bytes.
func HashBytes(v []byte) int64 {
	return int64(xxhash.Sum64(v))
}

func widen[T int8 | int16 | int32](v T) int64 {
	return HashInt64(int64(v))
}
