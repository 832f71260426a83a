// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package rowhash computes order sensitive 64 bit hashes of rows of
// columnar data over a configured set of hash channels.
package rowhash

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/elastic/apm-rowhash/columnar"
)

// ErrInvalidConfiguration is returned when a generator is created with an
// inconsistent channel configuration.
var ErrInvalidConfiguration = errors.New("invalid hash channel configuration")

// ErrColumnMismatch is returned by CheckColumns when a hash channel column
// cannot be hashed by the operator of its channel type.
var ErrColumnMismatch = errors.New("column does not match hash channel type")

// HashGenerator computes the hash of the row at a position.
type HashGenerator interface {
	HashPosition(position int, columns columnar.Columns) int64
}

// Generator hashes rows by folding the hash of every configured channel,
// in configuration order, into InitialHashValue using CombineHash.
//
// A Generator is immutable once created and safe for concurrent use. The
// columns passed to HashPosition must not be mutated during the call.
type Generator struct {
	types     []columnar.Type
	channels  []int
	operators []HashOperator
}

// New creates a generator hashing the column at channels[i] with the
// operator resolved for types[i]. Operators are resolved once, here.
// Channels are not validated against any batch, an invalid channel fails
// when the columns are accessed.
func New(types []columnar.Type, channels []int, resolver OperatorResolver) (*Generator, error) {
	if len(types) != len(channels) {
		return nil, fmt.Errorf(
			"%d hash channel types for %d hash channels: %w",
			len(types), len(channels), ErrInvalidConfiguration,
		)
	}
	if resolver == nil {
		return nil, fmt.Errorf("operator resolver is required: %w", ErrInvalidConfiguration)
	}
	operators := make([]HashOperator, len(types))
	for i, t := range types {
		op, err := resolver.HashOperator(t)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve hash operator for channel %d: %w", channels[i], err)
		}
		operators[i] = op
	}
	return &Generator{
		types:     slices.Clone(types),
		channels:  slices.Clone(channels),
		operators: operators,
	}, nil
}

// HashPosition returns the hash of the row at position. Failures of the
// column accessor or of an operator, such as an out of range position,
// are not recovered.
func (g *Generator) HashPosition(position int, columns columnar.Columns) int64 {
	result := InitialHashValue
	for i, channel := range g.channels {
		result = CombineHash(result, g.operators[i].HashCodeNullSafe(columns.Column(channel), position))
	}
	return result
}

// CheckColumns reports an error wrapping ErrColumnMismatch if an operator
// implementing ColumnAcceptor rejects the column of its channel. Columns
// of operators without the method are assumed to match. Channels must be
// valid for columns.
func (g *Generator) CheckColumns(columns columnar.Columns) error {
	for i, channel := range g.channels {
		acceptor, ok := g.operators[i].(ColumnAcceptor)
		if !ok {
			continue
		}
		if column := columns.Column(channel); !acceptor.Accepts(column) {
			return fmt.Errorf(
				"column %T of hash channel %d with type %s: %w",
				column, channel, g.types[i], ErrColumnMismatch,
			)
		}
	}
	return nil
}

// Types returns a copy of the hash channel types.
func (g *Generator) Types() []columnar.Type {
	return slices.Clone(g.types)
}

// Channels returns a copy of the hash channels.
func (g *Generator) Channels() []int {
	return slices.Clone(g.channels)
}

func (g *Generator) String() string {
	return fmt.Sprintf("Generator{hashChannelTypes=%v, hashChannels=%v}", g.types, g.channels)
}
