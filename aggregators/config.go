// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package aggregators

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/elastic/apm-rowhash/columnar"
	"github.com/elastic/apm-rowhash/rowhash"
)

const instrumentationName = "aggregators"

// Processor defines handling of the aggregated groups post harvest.
type Processor func(
	ctx context.Context,
	key GroupKey,
	count uint64,
) error

// Partitioner partitions the row hash based on the configured partition
// logic.
type Partitioner interface {
	Partition(hash int64) uint16
}

// Config contains the required config for running the aggregator.
type Config struct {
	DataDir          string
	InMemory         bool
	HashChannelTypes []columnar.Type
	HashChannels     []int
	Operators        rowhash.OperatorResolver
	Processor        Processor
	Partitioner      Partitioner
	HarvestInterval  time.Duration

	Meter  metric.Meter
	Tracer trace.Tracer
	Logger *zap.Logger
}

// Option allows configuring aggregator based on functional options.
type Option func(Config) Config

// NewConfig creates a new aggregator config based on the passed options.
func NewConfig(opts ...Option) (Config, error) {
	cfg := defaultCfg()
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return cfg, validateCfg(cfg)
}

// WithDataDir configures the data directory to be used by the database.
func WithDataDir(dataDir string) Option {
	return func(c Config) Config {
		c.DataDir = dataDir
		return c
	}
}

// WithInMemory defines whether aggregator uses in-memory file system.
func WithInMemory(enabled bool) Option {
	return func(c Config) Config {
		c.InMemory = enabled
		return c
	}
}

// WithHashChannels configures the columns rows are grouped by. The column
// at channels[i] holds values of types[i]. Without any channel every row
// belongs to one group, counting all rows.
func WithHashChannels(types []columnar.Type, channels []int) Option {
	return func(c Config) Config {
		c.HashChannelTypes = types
		c.HashChannels = channels
		return c
	}
}

// WithOperators configures the resolver of hash operators for the hash
// channel types. Defaults to rowhash.DefaultRegistry.
func WithOperators(resolver rowhash.OperatorResolver) Option {
	return func(c Config) Config {
		c.Operators = resolver
		return c
	}
}

// WithProcessor configures the processor for handling of the aggregated
// groups post harvest. Processor is called for each group in partition
// order, and within a partition in unsigned hash order.
func WithProcessor(processor Processor) Option {
	return func(c Config) Config {
		c.Processor = processor
		return c
	}
}

// WithPartitioner configures a partitioner for partitioning the groups in
// pebble. Partition IDs are encoded in a way that all the groups of a
// partition are listed before any other if compared using the bytes
// comparer.
func WithPartitioner(partitioner Partitioner) Option {
	return func(c Config) Config {
		c.Partitioner = partitioner
		return c
	}
}

// WithHarvestInterval defines how often groups are harvested once
// StartHarvesting is called.
func WithHarvestInterval(ivl time.Duration) Option {
	return func(c Config) Config {
		c.HarvestInterval = ivl
		return c
	}
}

// WithMeter defines a custom meter which will be used for collecting
// telemetry. Defaults to the meter provided by global provider.
func WithMeter(meter metric.Meter) Option {
	return func(c Config) Config {
		c.Meter = meter
		return c
	}
}

// WithTracer defines a custom tracer which will be used for collecting
// traces. Defaults to the tracer provided by global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(c Config) Config {
		c.Tracer = tracer
		return c
	}
}

// WithLogger defines a custom logger to be used by aggregator.
func WithLogger(logger *zap.Logger) Option {
	return func(c Config) Config {
		c.Logger = logger
		return c
	}
}

func defaultCfg() Config {
	return Config{
		DataDir:         "/tmp",
		Operators:       rowhash.DefaultRegistry(),
		Processor:       stdoutProcessor,
		Partitioner:     NewHashPartitioner(1),
		HarvestInterval: time.Minute,
		Meter:           otel.Meter(instrumentationName),
		Tracer:          otel.Tracer(instrumentationName),
		Logger:          zap.Must(zap.NewDevelopment()),
	}
}

func validateCfg(cfg Config) error {
	if cfg.DataDir == "" && !cfg.InMemory {
		return errors.New("data directory is required")
	}
	if len(cfg.HashChannelTypes) != len(cfg.HashChannels) {
		return fmt.Errorf(
			"%d hash channel types for %d hash channels: %w",
			len(cfg.HashChannelTypes), len(cfg.HashChannels), rowhash.ErrInvalidConfiguration,
		)
	}
	for _, ch := range cfg.HashChannels {
		if ch < 0 {
			return fmt.Errorf("hash channel %d is negative: %w", ch, rowhash.ErrInvalidConfiguration)
		}
	}
	if cfg.Operators == nil {
		return errors.New("operator resolver is required")
	}
	if cfg.Processor == nil {
		return errors.New("processor is required")
	}
	if cfg.Partitioner == nil {
		return errors.New("partitioner is required")
	}
	if cfg.HarvestInterval <= 0 {
		return errors.New("harvest interval must be positive")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

func stdoutProcessor(
	ctx context.Context,
	key GroupKey,
	count uint64,
) error {
	fmt.Printf("Received group with key: %+v, count: %d\n", key, count)
	return nil
}
