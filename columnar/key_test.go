// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package columnar

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKey(t *testing.T) {
	type myInt int16
	var key []byte
	key = NewBools([]bool{true}, nil).AppendKey(key, 0)
	key = NewFixed([]int8{-3}, nil).AppendKey(key, 0)
	key = NewFixed([]myInt{12}, nil).AppendKey(key, 0)
	key = NewFixed([]int32{7}, []bool{true}).AppendKey(key, 0)
	key = NewFixed([]int64{math.MinInt64}, nil).AppendKey(key, 0)
	key = NewFixed([]float32{1.5}, nil).AppendKey(key, 0)
	key = NewFixed([]float64{-2.25}, nil).AppendKey(key, 0)
	key = NewStrings([]string{"héllo"}, nil).AppendKey(key, 0)
	key = NewBinary([][]byte{{0, 1, 2}}, nil).AppendKey(key, 0)
	key = NewFixed([]int64{1700000000000000}, nil).AppendKey(key, 0)

	types := []Type{Boolean, TinyInt, SmallInt, Integer, BigInt, Real, Double, Varchar, Varbinary, Timestamp}
	var got []any
	for _, typ := range types {
		v, rest, err := DecodeKey(typ, key)
		require.NoError(t, err, typ)
		got = append(got, v)
		key = rest
	}
	assert.Empty(t, key)
	want := []any{
		true, int8(-3), int16(12), nil, int64(math.MinInt64),
		float32(1.5), -2.25, "héllo", []byte{0, 1, 2}, int64(1700000000000000),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded values mismatch (-want +got):\n%s", diff)
	}
}

func TestAppendKeyCanonicalFloats(t *testing.T) {
	col := NewFixed([]float64{0, math.Copysign(0, -1), math.NaN(), -math.NaN()}, nil)
	assert.Equal(t, col.AppendKey(nil, 0), col.AppendKey(nil, 1))
	assert.Equal(t, col.AppendKey(nil, 2), col.AppendKey(nil, 3))
	assert.NotEqual(t, col.AppendKey(nil, 0), col.AppendKey(nil, 2))
}

func TestAppendKeyDelimited(t *testing.T) {
	// ("ab", "c") and ("a", "bc") must not collide.
	first := NewStrings([]string{"ab", "a"}, nil)
	second := NewStrings([]string{"c", "bc"}, nil)
	k0 := second.AppendKey(first.AppendKey(nil, 0), 0)
	k1 := second.AppendKey(first.AppendKey(nil, 1), 1)
	assert.NotEqual(t, k0, k1)
}

func TestDecodeKeyErrors(t *testing.T) {
	_, _, err := DecodeKey(BigInt, nil)
	assert.Error(t, err)
	_, _, err = DecodeKey(BigInt, []byte{keyPresent, 1, 2})
	assert.Error(t, err)
	_, _, err = DecodeKey(Varchar, []byte{keyPresent, 5, 'a'})
	assert.Error(t, err)
	_, _, err = DecodeKey(Type("geometry"), []byte{keyPresent})
	assert.ErrorIs(t, err, ErrUnsupportedKeyType)

	v, rest, err := DecodeKey(Type("geometry"), []byte{keyNull, 9})
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, []byte{9}, rest)
}
