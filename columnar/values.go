// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package columnar

import (
	"golang.org/x/exp/constraints"
)

// Number is the set of value kinds stored by fixed width columns.
type Number interface {
	constraints.Integer | constraints.Float
}

// nulls is a null mask shared by the built-in columns. A nil mask means
// that the column has no nulls.
type nulls []bool

func (n nulls) isNull(position int) bool {
	if n == nil {
		return false
	}
	return n[position]
}

// Fixed is a column of fixed width numeric values.
type Fixed[T Number] struct {
	values []T
	nulls  nulls
}

// NewFixed creates a fixed width column. The nulls mask is optional, if
// present it must be as long as values.
func NewFixed[T Number](values []T, nullMask []bool) *Fixed[T] {
	if nullMask != nil && len(nullMask) != len(values) {
		panic("columnar: null mask length does not match values")
	}
	return &Fixed[T]{values: values, nulls: nullMask}
}

// Len returns the number of positions.
func (c *Fixed[T]) Len() int { return len(c.values) }

// IsNull reports whether the value at position is null.
func (c *Fixed[T]) IsNull(position int) bool {
	_ = c.values[position]
	return c.nulls.isNull(position)
}

// Value returns the value at position. The value of a null position is
// unspecified.
func (c *Fixed[T]) Value(position int) T { return c.values[position] }

// Bools is a column of boolean values.
type Bools struct {
	values []bool
	nulls  nulls
}

// NewBools creates a boolean column.
func NewBools(values []bool, nullMask []bool) *Bools {
	if nullMask != nil && len(nullMask) != len(values) {
		panic("columnar: null mask length does not match values")
	}
	return &Bools{values: values, nulls: nullMask}
}

func (c *Bools) Len() int { return len(c.values) }

func (c *Bools) IsNull(position int) bool {
	_ = c.values[position]
	return c.nulls.isNull(position)
}

func (c *Bools) Value(position int) bool { return c.values[position] }

// Strings is a column of variable width text values.
type Strings struct {
	values []string
	nulls  nulls
}

// NewStrings creates a text column.
func NewStrings(values []string, nullMask []bool) *Strings {
	if nullMask != nil && len(nullMask) != len(values) {
		panic("columnar: null mask length does not match values")
	}
	return &Strings{values: values, nulls: nullMask}
}

func (c *Strings) Len() int { return len(c.values) }

func (c *Strings) IsNull(position int) bool {
	_ = c.values[position]
	return c.nulls.isNull(position)
}

func (c *Strings) Value(position int) string { return c.values[position] }

// Binary is a column of variable width byte values. A nil slice is not
// treated as null, nulls are only taken from the mask.
type Binary struct {
	values [][]byte
	nulls  nulls
}

// NewBinary creates a byte column.
func NewBinary(values [][]byte, nullMask []bool) *Binary {
	if nullMask != nil && len(nullMask) != len(values) {
		panic("columnar: null mask length does not match values")
	}
	return &Binary{values: values, nulls: nullMask}
}

func (c *Binary) Len() int { return len(c.values) }

func (c *Binary) IsNull(position int) bool {
	_ = c.values[position]
	return c.nulls.isNull(position)
}

func (c *Binary) Value(position int) []byte { return c.values[position] }
