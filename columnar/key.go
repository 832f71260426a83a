// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package columnar

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"
)

const (
	keyNull    byte = 0
	keyPresent byte = 1
)

var (
	// ErrUnsupportedKeyType is returned when a column or type has no key
	// encoding.
	ErrUnsupportedKeyType = errors.New("type has no key encoding")

	errShortKey = errors.New("invalid encoded key of insufficient length")
)

// KeyAppender is implemented by columns that can encode the value at a
// position into a self delimiting key. Two positions have equal keys if
// and only if their values are equal, with null equal to null.
type KeyAppender interface {
	AppendKey(dst []byte, position int) []byte
}

// AppendKey encodes integers as 8 bytes big endian and floats as their
// IEEE representation, with negative zero and NaN folded to one value.
func (c *Fixed[T]) AppendKey(dst []byte, position int) []byte {
	if c.IsNull(position) {
		return append(dst, keyNull)
	}
	dst = append(dst, keyPresent)
	switch v := any(c.values[position]).(type) {
	case float32:
		return binary.BigEndian.AppendUint32(dst, math.Float32bits(canonicalFloat32(v)))
	case float64:
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(canonicalFloat64(v)))
	case int8:
		return binary.BigEndian.AppendUint64(dst, uint64(v))
	case int16:
		return binary.BigEndian.AppendUint64(dst, uint64(v))
	case int32:
		return binary.BigEndian.AppendUint64(dst, uint64(v))
	case int64:
		return binary.BigEndian.AppendUint64(dst, uint64(v))
	case int:
		return binary.BigEndian.AppendUint64(dst, uint64(v))
	}
	// Named and unsigned kinds.
	rv := reflect.ValueOf(c.values[position])
	switch rv.Kind() {
	case reflect.Float32:
		return binary.BigEndian.AppendUint32(dst, math.Float32bits(canonicalFloat32(float32(rv.Float()))))
	case reflect.Float64:
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(canonicalFloat64(rv.Float())))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return binary.BigEndian.AppendUint64(dst, uint64(rv.Int()))
	default:
		return binary.BigEndian.AppendUint64(dst, rv.Uint())
	}
}

func (c *Bools) AppendKey(dst []byte, position int) []byte {
	if c.IsNull(position) {
		return append(dst, keyNull)
	}
	if c.values[position] {
		return append(dst, keyPresent, 1)
	}
	return append(dst, keyPresent, 0)
}

func (c *Strings) AppendKey(dst []byte, position int) []byte {
	if c.IsNull(position) {
		return append(dst, keyNull)
	}
	v := c.values[position]
	dst = append(dst, keyPresent)
	dst = binary.AppendUvarint(dst, uint64(len(v)))
	return append(dst, v...)
}

func (c *Binary) AppendKey(dst []byte, position int) []byte {
	if c.IsNull(position) {
		return append(dst, keyNull)
	}
	v := c.values[position]
	dst = append(dst, keyPresent)
	dst = binary.AppendUvarint(dst, uint64(len(v)))
	return append(dst, v...)
}

// DecodeKey decodes one value of type t, encoded by a built-in column's
// AppendKey, from the front of data. It returns the value, nil for null,
// and the remaining bytes.
func DecodeKey(t Type, data []byte) (any, []byte, error) {
	if len(data) < 1 {
		return nil, nil, errShortKey
	}
	if data[0] == keyNull {
		return nil, data[1:], nil
	}
	data = data[1:]
	switch t {
	case Boolean:
		if len(data) < 1 {
			return nil, nil, errShortKey
		}
		return data[0] == 1, data[1:], nil
	case TinyInt, SmallInt, Integer, BigInt, Timestamp:
		if len(data) < 8 {
			return nil, nil, errShortKey
		}
		v := int64(binary.BigEndian.Uint64(data))
		data = data[8:]
		switch t {
		case TinyInt:
			return int8(v), data, nil
		case SmallInt:
			return int16(v), data, nil
		case Integer:
			return int32(v), data, nil
		}
		return v, data, nil
	case Real:
		if len(data) < 4 {
			return nil, nil, errShortKey
		}
		return math.Float32frombits(binary.BigEndian.Uint32(data)), data[4:], nil
	case Double:
		if len(data) < 8 {
			return nil, nil, errShortKey
		}
		return math.Float64frombits(binary.BigEndian.Uint64(data)), data[8:], nil
	case Varchar, Varbinary:
		n, sz := binary.Uvarint(data)
		if sz <= 0 || uint64(len(data)-sz) < n {
			return nil, nil, errShortKey
		}
		data = data[sz:]
		if t == Varchar {
			return string(data[:n]), data[n:], nil
		}
		v := make([]byte, n)
		copy(v, data[:n])
		return v, data[n:], nil
	}
	return nil, nil, fmt.Errorf("failed to decode key of type %s: %w", t, ErrUnsupportedKeyType)
}

// canonicalFloat64 folds -0 into +0 and every NaN into math.NaN so that
// values equal under SQL semantics share one representation.
func canonicalFloat64(v float64) float64 {
	if v == 0 {
		return 0
	}
	if v != v {
		return math.NaN()
	}
	return v
}

func canonicalFloat32(v float32) float32 {
	if v == 0 {
		return 0
	}
	if v != v {
		return float32(math.NaN())
	}
	return v
}

// CanonicalFloat64Bits returns the IEEE bits of v with -0 and NaN
// canonicalized.
func CanonicalFloat64Bits(v float64) uint64 {
	return math.Float64bits(canonicalFloat64(v))
}

// CanonicalFloat32Bits returns the IEEE bits of v with -0 and NaN
// canonicalized.
func CanonicalFloat32Bits(v float32) uint32 {
	return math.Float32bits(canonicalFloat32(v))
}
