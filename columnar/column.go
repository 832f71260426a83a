// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package columnar

import (
	"errors"
	"fmt"
	"strings"
)

// ErrColumnLength is returned when the columns of a batch do not have the
// same number of positions.
var ErrColumnLength = errors.New("columns differ in length")

// Column is a positional source of values. Positions outside [0, Len())
// are a caller error and panic.
type Column interface {
	// Len returns the number of positions in the column.
	Len() int
	// IsNull reports whether the value at position is null.
	IsNull(position int) bool
}

// Columns maps a channel, the index of a column, to the column.
type Columns interface {
	Column(channel int) Column
}

// ColumnsFunc is a function type that implements Columns.
type ColumnsFunc func(channel int) Column

// Column calls ColumnsFunc function.
func (f ColumnsFunc) Column(channel int) Column {
	return f(channel)
}

// Batch is an ordered set of columns with the same number of positions.
type Batch struct {
	columns   []Column
	positions int
}

// NewBatch creates a batch from columns. All columns must have the same
// length.
func NewBatch(columns ...Column) (*Batch, error) {
	b := &Batch{columns: columns}
	for i, c := range columns {
		if i == 0 {
			b.positions = c.Len()
			continue
		}
		if c.Len() != b.positions {
			return nil, fmt.Errorf(
				"column %d has %d positions, expected %d: %w",
				i, c.Len(), b.positions, ErrColumnLength,
			)
		}
	}
	return b, nil
}

// Column returns the column at channel.
func (b *Batch) Column(channel int) Column {
	return b.columns[channel]
}

// ColumnCount returns the number of columns in the batch.
func (b *Batch) ColumnCount() int {
	return len(b.columns)
}

// PositionCount returns the number of positions in every column.
func (b *Batch) PositionCount() int {
	return b.positions
}

func (b *Batch) String() string {
	var sb strings.Builder
	sb.WriteString("Batch{columns=[")
	for i, c := range b.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%T", c)
	}
	fmt.Fprintf(&sb, "], positions=%d}", b.positions)
	return sb.String()
}
