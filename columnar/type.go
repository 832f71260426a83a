// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package columnar holds the positional column model that row hashing reads
// from.
package columnar

// Type names the value type of a column. The set of types is open ended,
// packages may define their own Type values and register hash operators for
// them.
type Type string

// Built-in value types.
const (
	Boolean   Type = "boolean"
	TinyInt   Type = "tinyint"
	SmallInt  Type = "smallint"
	Integer   Type = "integer"
	BigInt    Type = "bigint"
	Real      Type = "real"
	Double    Type = "double"
	Varchar   Type = "varchar"
	Varbinary Type = "varbinary"
	// Timestamp values are stored as microseconds since the Unix epoch.
	Timestamp Type = "timestamp"
)

func (t Type) String() string {
	return string(t)
}
