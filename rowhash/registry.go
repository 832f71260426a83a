// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package rowhash

import (
	"errors"
	"fmt"
	"sync"

	"github.com/elastic/apm-rowhash/columnar"
)

// ErrUnsupportedType is returned when no hash operator is registered for a
// value type.
var ErrUnsupportedType = errors.New("unsupported type")

// OperatorResolver resolves the hash operator of a value type.
type OperatorResolver interface {
	HashOperator(t columnar.Type) (HashOperator, error)
}

// Registry is an OperatorResolver backed by registered operators. It is
// safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	operators map[columnar.Type]HashOperator
}

// NewRegistry returns a registry with the operators of all built-in types.
func NewRegistry() *Registry {
	r := &Registry{operators: make(map[columnar.Type]HashOperator)}
	r.operators[columnar.Boolean] = ValueHashOperator(HashBool)
	r.operators[columnar.TinyInt] = ValueHashOperator(widen[int8])
	r.operators[columnar.SmallInt] = ValueHashOperator(widen[int16])
	r.operators[columnar.Integer] = ValueHashOperator(widen[int32])
	r.operators[columnar.BigInt] = ValueHashOperator(HashInt64)
	r.operators[columnar.Timestamp] = ValueHashOperator(HashInt64)
	r.operators[columnar.Real] = ValueHashOperator(HashFloat32)
	r.operators[columnar.Double] = ValueHashOperator(HashFloat64)
	r.operators[columnar.Varchar] = ValueHashOperator(HashString)
	r.operators[columnar.Varbinary] = ValueHashOperator(HashBytes)
	return r
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry returns the process wide registry of built-in operators.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Register sets the hash operator for t, replacing any previous operator.
// Generators already created keep the operators they resolved.
func (r *Registry) Register(t columnar.Type, op HashOperator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operators[t] = op
}

// HashOperator returns the operator registered for t.
func (r *Registry) HashOperator(t columnar.Type) (HashOperator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.operators[t]
	if !ok || op == nil {
		return nil, fmt.Errorf("no hash operator for type %q: %w", t, ErrUnsupportedType)
	}
	return op, nil
}
