// Package exporter implements HoneybeePF's exporter adapter (spec §4.6):
// a periodic flush ticker that snapshots the metric aggregator and hands
// batches to a pluggable Sink, retrying failed submissions with
// exponential backoff and shedding at the tail on overflow, the same
// shape as the teacher's event bus and NATS exporter.
package exporter

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/honeybeepf/internal/aggregator"
	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
	"github.com/sureshkrishnan-v/honeybeepf/internal/errs"
	"github.com/sureshkrishnan-v/honeybeepf/internal/sink"
)

// batch is one flush cycle's worth of points, queued for submission.
type batch struct {
	ts     time.Time
	points []aggregator.Point
}

// Exporter owns the periodic flush loop and retry policy around a Sink.
type Exporter struct {
	logger        *zap.Logger
	agg           *aggregator.Aggregator
	sink          sink.Sink
	node          string
	flushInterval time.Duration

	queue chan batch

	batchesDropped atomic.Uint64
}

// New creates an Exporter flushing agg on flushInterval and submitting to s.
func New(agg *aggregator.Aggregator, s sink.Sink, node string, flushInterval time.Duration, logger *zap.Logger) *Exporter {
	if flushInterval <= 0 {
		flushInterval = constants.DefaultFlushInterval
	}
	return &Exporter{
		logger:        logger,
		agg:           agg,
		sink:          s,
		node:          node,
		flushInterval: flushInterval,
		queue:         make(chan batch, constants.ExporterQueueSize),
	}
}

// Run starts the sink, the flush ticker, and the submission worker. Blocks
// until ctx is cancelled, then performs one final bounded flush (spec §4.6).
func (e *Exporter) Run(ctx context.Context) error {
	if err := e.sink.Start(ctx); err != nil {
		e.logger.Warn("sink unreachable at start; retrying with backoff", zap.Error(err))
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = constants.BackoffInitialInterval
		bo.MaxInterval = constants.BackoffMaxInterval
		bo.MaxElapsedTime = 0
		for err != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(bo.NextBackOff()):
			}
			err = e.sink.Start(ctx)
		}
	}

	go e.submitLoop(ctx)

	ticker := time.NewTicker(e.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), constants.ExporterShutdownTimeout)
			defer cancel()
			if points := e.agg.Snapshot(); len(points) > 0 {
				if err := e.sink.Record(finalCtx, e.node, time.Now(), points); err != nil {
					e.batchesDropped.Add(1)
					e.logger.Error("final flush failed", zap.Error(errs.ExportError("final flush", err)))
				}
			}
			return e.sink.Stop(finalCtx)
		case <-ticker.C:
			e.flushNow()
		}
	}
}

// flushNow snapshots the aggregator and enqueues a batch, shedding at the
// tail (dropping the new batch, not blocking the flush loop) if the queue
// is full — the same select-default drop shape as the teacher's event bus.
func (e *Exporter) flushNow() {
	points := e.agg.Snapshot()
	if len(points) == 0 {
		return
	}
	select {
	case e.queue <- batch{ts: time.Now(), points: points}:
	default:
		e.batchesDropped.Add(1)
		if e.logger != nil {
			e.logger.Warn("exporter queue full; batch dropped", zap.Int("points", len(points)))
		}
	}
}

// submitLoop drains the queue, submitting each batch with exponential
// backoff retry (base constants.BackoffInitialInterval, cap
// constants.BackoffMaxInterval, jitter constants.BackoffRandomizationFactor,
// at most constants.BackoffMaxAttempts attempts). A batch that exhausts
// retries increments batchesDropped and is discarded — the aggregator is
// never blocked on sink availability (spec §4.6).
func (e *Exporter) submitLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-e.queue:
			if err := e.submitWithRetry(ctx, b); err != nil {
				e.batchesDropped.Add(1)
				if e.logger != nil {
					e.logger.Error("batch submission exhausted retries; dropped",
						zap.Error(errs.ExportError("submitting batch", err)))
				}
			}
		}
	}
}

func (e *Exporter) submitWithRetry(ctx context.Context, b batch) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = constants.BackoffInitialInterval
	bo.MaxInterval = constants.BackoffMaxInterval
	bo.RandomizationFactor = constants.BackoffRandomizationFactor
	bo.MaxElapsedTime = 0 // bounded by attempt count below, not elapsed time

	var lastErr error
	for attempt := 0; attempt < constants.BackoffMaxAttempts; attempt++ {
		if err := e.sink.Record(ctx, e.node, b.ts, b.points); err == nil {
			return nil
		} else {
			lastErr = err
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}

// BatchesDropped returns the cumulative number of batches discarded,
// whether from queue overflow or retry exhaustion
// (honeybeepf_export_batches_dropped_total equivalent self-metric).
func (e *Exporter) BatchesDropped() uint64 { return e.batchesDropped.Load() }
