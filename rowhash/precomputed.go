// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package rowhash

import (
	"fmt"

	"github.com/elastic/apm-rowhash/columnar"
)

// PrecomputedGenerator reads row hashes computed upstream, typically by a
// Generator, from a bigint column.
type PrecomputedGenerator struct {
	hashChannel int
}

// NewPrecomputed returns a generator reading hashes from hashChannel.
func NewPrecomputed(hashChannel int) *PrecomputedGenerator {
	return &PrecomputedGenerator{hashChannel: hashChannel}
}

// HashPosition returns the precomputed hash at position. It panics if the
// hash column does not hold int64 values.
func (g *PrecomputedGenerator) HashPosition(position int, columns columnar.Columns) int64 {
	column := columns.Column(g.hashChannel)
	v, ok := column.(valuer[int64])
	if !ok {
		panic(fmt.Sprintf("rowhash: hash column %T does not hold int64 values", column))
	}
	return v.Value(position)
}

func (g *PrecomputedGenerator) String() string {
	return fmt.Sprintf("PrecomputedGenerator{hashChannel=%d}", g.hashChannel)
}
