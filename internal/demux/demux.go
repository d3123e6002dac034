// Package demux implements HoneybeePF's event demultiplexer (spec §4.4):
// a worker pool draining multiple probe rings, one worker owning a ring
// for the duration of a drain, decoding and dispatching to the owning
// probe's handler synchronously. A handler panic is isolated to its
// worker; other workers continue (spec §4.7).
package demux

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
	"github.com/sureshkrishnan-v/honeybeepf/internal/errs"
	"github.com/sureshkrishnan-v/honeybeepf/internal/ring"
)

// Handler processes one decoded ring record. It must be non-blocking and
// complete in bounded time (spec §4.4). An error is logged as a
// HandlerError; the drain continues — the ring is never aborted for it.
type Handler func(rec ring.Record) error

// source pairs a ring with the handler that owns it.
type source struct {
	r       *ring.Ring
	handler Handler
}

// Demux owns a worker pool draining a fixed set of rings.
type Demux struct {
	logger  *zap.Logger
	workers int

	mu      sync.Mutex
	sources []source

	handlerErrors atomic.Uint64
	panics        atomic.Uint64
}

// New creates a Demux with workers = min(constants.MaxDemuxWorkers, NumCPU()),
// floored at constants.MinDemuxWorkers (spec §5).
func New(logger *zap.Logger) *Demux {
	n := runtime.NumCPU()
	if n > constants.MaxDemuxWorkers {
		n = constants.MaxDemuxWorkers
	}
	if n < constants.MinDemuxWorkers {
		n = constants.MinDemuxWorkers
	}
	return &Demux{logger: logger, workers: n}
}

// Register adds a ring + handler pair for the pool to drain. Must be
// called before Run.
func (d *Demux) Register(r *ring.Ring, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources = append(d.sources, source{r: r, handler: handler})
}

// Run starts the worker pool, partitioning registered sources round-robin
// across workers so each ring has a single owning goroutine (preserving
// per-ring FIFO order; no cross-ring ordering is guaranteed — spec §5).
// Run blocks until ctx is cancelled, then waits up to
// constants.DemuxShutdownGrace for in-flight records to finish before
// abandoning any remaining workers.
func (d *Demux) Run(ctx context.Context) {
	d.mu.Lock()
	sources := append([]source(nil), d.sources...)
	d.mu.Unlock()

	if len(sources) == 0 {
		return
	}

	buckets := make([][]source, d.workers)
	for i, s := range sources {
		w := i % d.workers
		buckets[w] = append(buckets[w], s)
	}

	var wg sync.WaitGroup
	for _, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		wg.Add(1)
		go func(bucket []source) {
			defer wg.Done()
			d.workerLoop(ctx, bucket)
		}(bucket)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	<-ctx.Done()
	select {
	case <-done:
	case <-time.After(constants.DemuxShutdownGrace):
		if d.logger != nil {
			d.logger.Warn("demux workers did not finish within grace period; abandoning")
		}
	}
}

// workerLoop repeatedly drains each ring in this worker's bucket, calling
// the owning handler for every decoded record. A panic inside a handler is
// recovered, that ring's worker exits (other workers continue) — spec §4.7.
func (d *Demux) workerLoop(ctx context.Context, bucket []source) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			if d.logger != nil {
				d.logger.Error("demux worker panic recovered", zap.Any("panic", r))
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		for _, src := range bucket {
			err := src.r.Drain(ctx, constants.RingDrainPollTimeout, func(rec ring.Record) {
				if herr := src.handler(rec); herr != nil {
					d.handlerErrors.Add(1)
					if d.logger != nil {
						d.logger.Warn("handler error", zap.String("probe", rec.Probe),
							zap.Error(errs.HandlerError("processing record", herr)))
					}
				}
			})
			if err != nil && ctx.Err() == nil && d.logger != nil {
				d.logger.Warn("ring drain error", zap.Error(err))
			}
		}
	}
}

// HandlerErrors returns the cumulative count of handler errors observed.
func (d *Demux) HandlerErrors() uint64 { return d.handlerErrors.Load() }

// Panics returns the cumulative count of recovered worker panics.
func (d *Demux) Panics() uint64 { return d.panics.Load() }
