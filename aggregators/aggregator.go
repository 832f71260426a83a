// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package aggregators holds the hash sensitive operators built on row
// hashes: partitioning of batches and hash based group counting.
package aggregators

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/axiomhq/hyperloglog"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/elastic/apm-rowhash/aggregators/internal/telemetry"
	"github.com/elastic/apm-rowhash/rowhash"
)

const (
	dbCommitThresholdBytes = 10 * 1024 * 1024 // commit every 10MB
)

var (
	// ErrAggregatorClosed means that aggregator was closed when the
	// method was called and thus cannot be processed further.
	ErrAggregatorClosed = errors.New("aggregator is closed")
)

// Aggregator represents a LSM based aggregator counting the rows of every
// distinct group of hash channel values. Groups are keyed by partition and
// row hash, and harvested in that order by the defined processor.
type Aggregator struct {
	db           *pebble.DB
	writeOptions *pebble.WriteOptions
	cfg          Config
	generator    *rowhash.Generator

	mu      sync.RWMutex
	writers sync.Map

	estimatorMu sync.Mutex
	estimator   *hyperloglog.Sketch

	closeOnce         sync.Once
	closed            chan struct{}
	harvestingStopped chan struct{}

	metrics *telemetry.Metrics
}

// New returns a new aggregator instance.
func New(opts ...Option) (*Aggregator, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregation config: %w", err)
	}

	generator, err := rowhash.New(cfg.HashChannelTypes, cfg.HashChannels, cfg.Operators)
	if err != nil {
		return nil, fmt.Errorf("failed to create row hash generator: %w", err)
	}

	pebbleOpts := &pebble.Options{Merger: groupCountMerger}
	if cfg.InMemory {
		pebbleOpts.FS = vfs.NewMem()
	}
	pb, err := pebble.Open(cfg.DataDir, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create pebble db: %w", err)
	}

	metrics, err := telemetry.NewMetrics(
		func() *pebble.Metrics { return pb.Metrics() },
		telemetry.WithMeter(cfg.Meter),
	)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to create metrics: %w", err),
			pb.Close(),
		)
	}

	cfg.Logger.Debug("created aggregator", zap.Stringer("generator", generator))
	return &Aggregator{
		db:           pb,
		writeOptions: pebble.Sync,
		cfg:          cfg,
		generator:    generator,
		estimator:    hyperloglog.New14(),
		closed:       make(chan struct{}),
		metrics:      metrics,
	}, nil
}

// Generator returns the row hash generator used to group rows.
func (a *Aggregator) Generator() *rowhash.Generator {
	return a.generator
}

// EstimatedGroups returns an estimate of the number of distinct row hashes
// written since the last harvest.
func (a *Aggregator) EstimatedGroups() uint64 {
	a.estimatorMu.Lock()
	defer a.estimatorMu.Unlock()
	return a.estimator.Estimate()
}

func (a *Aggregator) insertHashes(hashes []int64) {
	a.estimatorMu.Lock()
	defer a.estimatorMu.Unlock()
	for _, h := range hashes {
		a.estimator.InsertHash(uint64(h))
	}
}

func (a *Aggregator) resetEstimator() {
	a.estimatorMu.Lock()
	defer a.estimatorMu.Unlock()
	a.estimator = hyperloglog.New14()
}

// Close commits and closes any open Writers, performs a final harvest,
// and closes the underlying database.
//
// No further writes may be performed after Close is called,
// and no further harvests will be performed once Close returns.
func (a *Aggregator) Close(ctx context.Context) error {
	a.closeOnce.Do(func() { close(a.closed) })

	a.mu.RLock()
	harvestingStopped := a.harvestingStopped
	a.mu.RUnlock()

	var errs []error
	if harvestingStopped != nil {
		select {
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("context cancelled while waiting for harvesting to stop: %w", ctx.Err()))
		case <-harvestingStopped:
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.writers.Range(func(_, value any) bool {
		writer := value.(*Writer)
		if err := writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close writer: %w", err))
		}
		return true
	})
	if a.db != nil {
		if _, err := a.harvest(ctx, nil, nil); err != nil {
			errs = append(errs, fmt.Errorf("failed to perform final harvest: %w", err))
		}
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close pebble: %w", err))
		}
		a.db = nil
		if err := a.metrics.CleanUp(); err != nil {
			errs = append(errs, fmt.Errorf("failed to cleanup instrumentation: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NewWriter returns a new Writer, for adding batches to be aggregated.
//
// The returned Writer will be associated with the aggregator, and will be
// automatically closed (with any buffered writes committed) when the aggregator
// is closed.
//
// NewWriter will return an error if the aggregator has already been stopped.
func (a *Aggregator) NewWriter() (*Writer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	select {
	case <-a.closed:
		return nil, ErrAggregatorClosed
	default:
	}
	w := &Writer{aggregator: a, batch: a.db.NewBatch()}
	a.writers.Store(w, w)
	return w, nil
}

// StartHarvesting starts periodically harvesting aggregated groups.
//
// StartHarvesting may be called at most once, and will return an error if it
// is called a second time, or if the aggregator has already been closed.
func (a *Aggregator) StartHarvesting() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	select {
	case <-a.closed:
		return ErrAggregatorClosed
	default:
	}
	if a.harvestingStopped != nil {
		return errors.New("harvesting already started")
	}
	a.harvestingStopped = make(chan struct{})
	go a.harvestLoop()
	return nil
}

func (a *Aggregator) harvestLoop() {
	defer close(a.harvestingStopped)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticker := time.NewTicker(a.cfg.HarvestInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.closed:
			return
		case <-ticker.C:
		}
		if _, err := a.Harvest(ctx); err != nil {
			if errors.Is(err, ErrAggregatorClosed) {
				return
			}
			a.cfg.Logger.Warn("failed to commit and harvest groups", zap.Error(err))
		}
	}
}

// Harvest commits the buffered writes of all writers and processes every
// aggregated group, deleting the groups once processed. It returns the
// number of groups successfully processed. It is possible to have non nil
// error and greater than 0 groups if some of the groups failed processing.
func (a *Aggregator) Harvest(ctx context.Context) (int, error) {
	return a.harvestRange(ctx, nil, nil)
}

// HarvestPartition is like Harvest but only processes the groups of one
// partition.
func (a *Aggregator) HarvestPartition(ctx context.Context, partitionID uint16) (int, error) {
	lb, ub := partitionBounds(partitionID)
	return a.harvestRange(ctx, lb, ub)
}

func (a *Aggregator) harvestRange(ctx context.Context, lb, ub []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	select {
	case <-a.closed:
		return 0, ErrAggregatorClosed
	default:
	}
	return a.harvest(ctx, lb, ub)
}

// harvest must be called with a.mu held. Holding the lock guarantees
// that no writer commits between reading and deleting the groups.
func (a *Aggregator) harvest(ctx context.Context, lb, ub []byte) (int, error) {
	ctx, span := a.cfg.Tracer.Start(ctx, "harvest")
	defer span.End()

	var errs []error
	a.writers.Range(func(_, value any) bool {
		writer := value.(*Writer)
		batch, ok := writer.takeBatch()
		if !ok {
			return true
		}
		if err := batch.Commit(a.writeOptions); err != nil {
			span.RecordError(err)
			errs = append(errs, fmt.Errorf("failed to commit batch before harvest: %w", err))
		}
		if err := batch.Close(); err != nil {
			span.RecordError(err)
			errs = append(errs, fmt.Errorf("failed to close batch before harvest: %w", err))
		}
		return true
	})

	count, err := a.harvestGroups(ctx, lb, ub)
	if err != nil {
		span.RecordError(err)
		errs = append(errs, err)
	}
	if lb == nil && ub == nil {
		a.resetEstimator()
	}
	a.metrics.GroupsHarvested.Add(ctx, int64(count))
	a.cfg.Logger.Debug(
		"Finished harvesting aggregated groups",
		zap.Int("groups_successfully_harvested", count),
		zap.Error(err),
	)
	return count, errors.Join(errs...)
}

func (a *Aggregator) harvestGroups(ctx context.Context, lb, ub []byte) (int, error) {
	iter, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: lb,
		UpperBound: ub,
		KeyTypes:   pebble.IterKeyTypePointsOnly,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create iterator: %w", err)
	}

	var (
		errs          []error
		count         int
		first, last   []byte
		harvestedKeys int
	)
	for iter.First(); iter.Valid(); iter.Next() {
		if first == nil {
			first = slices.Clone(iter.Key())
		}
		last = append(last[:0], iter.Key()...)
		harvestedKeys++

		var key GroupKey
		if err := key.UnmarshalBinary(iter.Key()); err != nil {
			errs = append(errs, fmt.Errorf("failed to unmarshal key: %w", err))
			continue
		}
		value, err := iter.ValueAndErr()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to read group value: %w", err))
			continue
		}
		rows, err := decodeCount(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to decode group count: %w", err))
			continue
		}
		if err := a.cfg.Processor(ctx, key, rows); err != nil {
			errs = append(errs, fmt.Errorf("failed to process group with hash %d: %w", key.Hash, err))
			continue
		}
		count++
	}
	if err := iter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close iterator: %w", err))
	}
	if harvestedKeys > 0 {
		// The end key of a range deletion is exclusive, the successor of
		// the last key makes it inclusive.
		if err := a.db.DeleteRange(first, append(last, 0), a.writeOptions); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete harvested groups: %w", err))
		}
	}
	if len(errs) > 0 {
		return count, fmt.Errorf(
			"failed to process %d out of %d groups:\n%w",
			harvestedKeys-count, harvestedKeys, errors.Join(errs...),
		)
	}
	return count, nil
}
