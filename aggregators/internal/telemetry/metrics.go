// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package telemetry holds the logic for emitting telemetry when performing
// aggregation.
package telemetry

import (
	"context"
	"fmt"

	"github.com/cockroachdb/pebble"
	"go.opentelemetry.io/otel/metric"
)

const (
	bytesUnit = "by"
	countUnit = "1"
)

// Metrics are a collection of metric used to record all the
// measurements for the aggregators. Sync metrics are exposed
// and used by the calling code directly, async metrics are
// handled by a callback registered with the meter.
type Metrics struct {
	// Synchronous metrics used to record aggregation measurements.

	RequestsTotal   metric.Int64Counter
	RequestsFailed  metric.Int64Counter
	RowsHashed      metric.Int64Counter
	BytesIngested   metric.Int64Counter
	GroupsHarvested metric.Int64Counter

	// Asynchronous metrics used to get pebble metrics and
	// record measurements. These are kept unexported as they are
	// supposed to be updated via the registered callback.

	pebbleFlushes     metric.Int64ObservableCounter
	pebbleCompactions metric.Int64ObservableCounter
	pebbleMemtableSz  metric.Int64ObservableGauge
	pebbleDiskUsage   metric.Int64ObservableGauge

	// registration represents the token for the configured callback.
	registration metric.Registration
}

type pebbleProvider func() *pebble.Metrics

// NewMetrics returns a new instance of the metrics.
func NewMetrics(provider pebbleProvider, opts ...Option) (*Metrics, error) {
	var err error
	var i Metrics

	cfg := newConfig(opts...)
	meter := cfg.Meter

	i.RequestsTotal, err = meter.Int64Counter(
		"requests.processed",
		metric.WithDescription("Number of batches processed by the aggregators"),
		metric.WithUnit(countUnit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric for requests processed: %w", err)
	}
	i.RequestsFailed, err = meter.Int64Counter(
		"requests.failed",
		metric.WithDescription("Number of batches that failed to be aggregated"),
		metric.WithUnit(countUnit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric for requests failed: %w", err)
	}
	i.RowsHashed, err = meter.Int64Counter(
		"rows.hashed",
		metric.WithDescription("Number of rows hashed into groups"),
		metric.WithUnit(countUnit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric for rows hashed: %w", err)
	}
	i.BytesIngested, err = meter.Int64Counter(
		"bytes.ingested",
		metric.WithDescription("Number of bytes ingested by the aggregators"),
		metric.WithUnit(bytesUnit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric for bytes ingested: %w", err)
	}
	i.GroupsHarvested, err = meter.Int64Counter(
		"groups.harvested",
		metric.WithDescription("Number of groups harvested"),
		metric.WithUnit(countUnit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric for groups harvested: %w", err)
	}

	i.pebbleFlushes, err = meter.Int64ObservableCounter(
		"pebble.flushes",
		metric.WithDescription("Number of memtable flushes to disk"),
		metric.WithUnit(countUnit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric for flushes: %w", err)
	}
	i.pebbleCompactions, err = meter.Int64ObservableCounter(
		"pebble.compactions",
		metric.WithDescription("Number of table compactions"),
		metric.WithUnit(countUnit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric for compactions: %w", err)
	}
	i.pebbleMemtableSz, err = meter.Int64ObservableGauge(
		"pebble.memtable.size",
		metric.WithDescription("Current size of memtable in bytes"),
		metric.WithUnit(bytesUnit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric for memtable size: %w", err)
	}
	i.pebbleDiskUsage, err = meter.Int64ObservableGauge(
		"pebble.disk.usage",
		metric.WithDescription("Disk space used by the database in bytes"),
		metric.WithUnit(bytesUnit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric for disk usage: %w", err)
	}

	i.registration, err = meter.RegisterCallback(
		i.pebbleCallback(provider),
		i.pebbleFlushes,
		i.pebbleCompactions,
		i.pebbleMemtableSz,
		i.pebbleDiskUsage,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register callback: %w", err)
	}
	return &i, nil
}

// CleanUp unregisters any registered callback for collecting async
// measurements.
func (i *Metrics) CleanUp() error {
	if i == nil || i.registration == nil {
		return nil
	}
	if err := i.registration.Unregister(); err != nil {
		return fmt.Errorf("failed to unregister callback: %w", err)
	}
	return nil
}

func (i *Metrics) pebbleCallback(provider pebbleProvider) metric.Callback {
	return func(ctx context.Context, obs metric.Observer) error {
		pm := provider()
		if pm == nil {
			return nil
		}
		obs.ObserveInt64(i.pebbleFlushes, pm.Flush.Count)
		obs.ObserveInt64(i.pebbleCompactions, pm.Compact.Count)
		obs.ObserveInt64(i.pebbleMemtableSz, int64(pm.MemTable.Size))
		obs.ObserveInt64(i.pebbleDiskUsage, int64(pm.DiskSpaceUsage()))
		return nil
	}
}
