// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package rowhash

// InitialHashValue is the value every row hash starts folding from. A
// configuration without channels hashes every row to InitialHashValue.
//
// InitialHashValue and CombineHash are shared by every component that must
// agree on row hashes. Changing either changes every persisted partition
// assignment.
const InitialHashValue int64 = 0x2127599bf4325c37

// NullHashCode is the hash of a null value for all built-in operators.
const NullHashCode int64 = 0

// CombineHash folds the hash of the next channel into the running hash.
// The fold is order sensitive, arithmetic wraps on overflow.
func CombineHash(previous, value int64) int64 {
	return 31*previous + value
}
