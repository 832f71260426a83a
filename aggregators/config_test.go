// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package aggregators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastic/apm-rowhash/columnar"
	"github.com/elastic/apm-rowhash/rowhash"
)

func TestNewConfig(t *testing.T) {
	withChannels := WithHashChannels([]columnar.Type{columnar.BigInt}, []int{0})
	for _, tt := range []struct {
		name        string
		opts        []Option
		expectedErr string
		is          error
	}{
		{
			name: "no_hash_channels",
			opts: nil,
		},
		{
			name: "mismatched_hash_channels",
			opts: []Option{
				WithHashChannels([]columnar.Type{columnar.BigInt, columnar.Varchar}, []int{0}),
			},
			is: rowhash.ErrInvalidConfiguration,
		},
		{
			name: "negative_hash_channel",
			opts: []Option{
				WithHashChannels([]columnar.Type{columnar.BigInt}, []int{-1}),
			},
			is: rowhash.ErrInvalidConfiguration,
		},
		{
			name:        "empty_data_dir",
			opts:        []Option{withChannels, WithDataDir("")},
			expectedErr: "data directory is required",
		},
		{
			name: "empty_data_dir_in_memory",
			opts: []Option{withChannels, WithDataDir(""), WithInMemory(true)},
		},
		{
			name:        "nil_operators",
			opts:        []Option{withChannels, WithOperators(nil)},
			expectedErr: "operator resolver is required",
		},
		{
			name:        "nil_processor",
			opts:        []Option{withChannels, WithProcessor(nil)},
			expectedErr: "processor is required",
		},
		{
			name:        "nil_partitioner",
			opts:        []Option{withChannels, WithPartitioner(nil)},
			expectedErr: "partitioner is required",
		},
		{
			name:        "zero_harvest_interval",
			opts:        []Option{withChannels, WithHarvestInterval(0)},
			expectedErr: "harvest interval must be positive",
		},
		{
			name:        "nil_logger",
			opts:        []Option{withChannels, WithLogger(nil)},
			expectedErr: "logger is required",
		},
		{
			name: "valid",
			opts: []Option{withChannels, WithHarvestInterval(time.Second)},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.opts...)
			switch {
			case tt.expectedErr != "":
				assert.EqualError(t, err, tt.expectedErr)
			case tt.is != nil:
				assert.ErrorIs(t, err, tt.is)
			default:
				require.NoError(t, err)
			}
		})
	}
}
