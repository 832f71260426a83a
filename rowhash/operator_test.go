// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package rowhash

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastic/apm-rowhash/columnar"
)

func TestHashInt64(t *testing.T) {
	assert.Equal(t, int64(0), HashInt64(0))
	assert.NotEqual(t, HashInt64(1), HashInt64(2))
	assert.NotEqual(t, int64(1), HashInt64(1))
}

func TestHashFloat(t *testing.T) {
	negZero := math.Copysign(0, -1)
	assert.Equal(t, HashFloat64(0), HashFloat64(negZero))
	assert.Equal(t, HashFloat64(math.NaN()), HashFloat64(-math.NaN()))
	assert.NotEqual(t, HashFloat64(1), HashFloat64(2))
	assert.Equal(t, HashFloat32(0), HashFloat32(float32(negZero)))
	assert.Equal(t, HashFloat32(float32(math.NaN())), HashFloat32(-float32(math.NaN())))
}

func TestHashBool(t *testing.T) {
	assert.Equal(t, int64(1231), HashBool(true))
	assert.Equal(t, int64(1237), HashBool(false))
}

func TestHashString(t *testing.T) {
	// xxhash64 of the empty input with seed 0.
	empty := uint64(0xef46db3751d8e999)
	assert.Equal(t, int64(empty), HashString(""))
	assert.Equal(t, HashString("apm"), HashBytes([]byte("apm")))
	assert.NotEqual(t, HashString("a"), HashString("b"))
}

func TestValueHashOperator(t *testing.T) {
	op := ValueHashOperator(HashString)
	col := columnar.NewStrings([]string{"a", "a"}, []bool{false, true})
	assert.Equal(t, HashString("a"), op.HashCodeNullSafe(col, 0))
	assert.Equal(t, NullHashCode, op.HashCodeNullSafe(col, 1))
	assert.Panics(t, func() {
		op.HashCodeNullSafe(columnar.NewFixed([]int64{1}, nil), 0)
	})
}

func TestValueHashOperatorAccepts(t *testing.T) {
	op := ValueHashOperator(HashString)
	acceptor, ok := op.(ColumnAcceptor)
	require.True(t, ok)
	assert.True(t, acceptor.Accepts(columnar.NewStrings(nil, nil)))
	assert.False(t, acceptor.Accepts(columnar.NewFixed([]int64{1}, nil)))
	assert.False(t, acceptor.Accepts(columnar.NewBinary(nil, nil)))
}

func TestIntegerTypesHashAlike(t *testing.T) {
	r := NewRegistry()
	columns := map[columnar.Type]columnar.Column{
		columnar.TinyInt:   columnar.NewFixed([]int8{-42}, nil),
		columnar.SmallInt:  columnar.NewFixed([]int16{-42}, nil),
		columnar.Integer:   columnar.NewFixed([]int32{-42}, nil),
		columnar.BigInt:    columnar.NewFixed([]int64{-42}, nil),
		columnar.Timestamp: columnar.NewFixed([]int64{-42}, nil),
	}
	for typ, col := range columns {
		op, err := r.HashOperator(typ)
		if assert.NoError(t, err, typ) {
			assert.Equal(t, HashInt64(-42), op.HashCodeNullSafe(col, 0), typ)
		}
	}
}
