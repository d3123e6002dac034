package exporter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sureshkrishnan-v/honeybeepf/internal/aggregator"
)

// fakeSink is a hand-written test double recording every Record call,
// optionally failing the first N attempts to exercise retry.
type fakeSink struct {
	mu       sync.Mutex
	records  [][]aggregator.Point
	failN    int
	attempts atomic.Int32
}

func (f *fakeSink) Name() string                  { return "fake" }
func (f *fakeSink) Start(ctx context.Context) error { return nil }
func (f *fakeSink) Stop(ctx context.Context) error  { return nil }

func (f *fakeSink) Record(ctx context.Context, node string, ts time.Time, points []aggregator.Point) error {
	n := f.attempts.Add(1)
	if int(n) <= f.failN {
		return errors.New("simulated transient failure")
	}
	f.mu.Lock()
	f.records = append(f.records, points)
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func newTestAggregator() *aggregator.Aggregator {
	a := aggregator.New(100, nil)
	a.RegisterCounter("honeybeepf_block_io_events_total", []string{"device"})
	a.Inc("honeybeepf_block_io_events_total", map[string]string{"device": "sda"}, 1)
	return a
}

func TestFlushNowDeliversBatch(t *testing.T) {
	agg := newTestAggregator()
	sink := &fakeSink{}
	e := New(agg, sink, "node-1", time.Hour, nil)

	e.flushNow()
	b := <-e.queue
	if len(b.points) != 1 {
		t.Fatalf("flushNow() enqueued %d points, want 1", len(b.points))
	}
}

func TestFlushNowSkipsEmptySnapshot(t *testing.T) {
	agg := aggregator.New(100, nil)
	sink := &fakeSink{}
	e := New(agg, sink, "node-1", time.Hour, nil)

	e.flushNow()
	select {
	case <-e.queue:
		t.Fatal("flushNow() enqueued a batch for an empty snapshot")
	default:
	}
}

func TestFlushNowShedsAtTailWhenQueueFull(t *testing.T) {
	agg := newTestAggregator()
	sink := &fakeSink{}
	e := New(agg, sink, "node-1", time.Hour, nil)
	e.queue = make(chan batch, 1)

	e.flushNow()
	e.flushNow() // queue now full; this one should be dropped

	if got := e.BatchesDropped(); got != 1 {
		t.Errorf("BatchesDropped() = %d, want 1", got)
	}
}

func TestSubmitWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	agg := newTestAggregator()
	sink := &fakeSink{failN: 2}
	e := New(agg, sink, "node-1", time.Hour, nil)

	err := e.submitWithRetry(context.Background(), batch{ts: time.Now(), points: agg.Snapshot()})
	if err != nil {
		t.Fatalf("submitWithRetry() error = %v, want nil after recovering", err)
	}
	if sink.count() != 1 {
		t.Errorf("sink recorded %d batches, want 1", sink.count())
	}
}

func TestSubmitWithRetryExhaustsAttempts(t *testing.T) {
	agg := newTestAggregator()
	sink := &fakeSink{failN: 1000}
	e := New(agg, sink, "node-1", time.Hour, nil)

	err := e.submitWithRetry(context.Background(), batch{ts: time.Now(), points: agg.Snapshot()})
	if err == nil {
		t.Fatal("submitWithRetry() = nil, want an error after exhausting retries")
	}
}
