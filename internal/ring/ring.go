// Package ring wraps a single probe's cilium/ebpf ringbuf.Reader with the
// bounded-poll drain and drop-counting semantics HoneybeePF's ring
// transport requires (spec §4.1).
package ring

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/ringbuf"

	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
	"github.com/sureshkrishnan-v/honeybeepf/internal/errs"
)

// Record is one decoded-ready ring buffer record: the raw kernel sample
// plus the probe name it came from, handed to the demultiplexer.
type Record struct {
	Probe string
	Raw   []byte
}

// Ring wraps one probe's ringbuf.Reader plus its declared record size and
// drop counter.
type Ring struct {
	probe      string
	recordSize int
	reader     *ringbuf.Reader
	dropMap    *ebpf.Map // optional kernel-side overflow counter map

	dropped     atomic.Uint64
	lastDropVal uint64
}

// Validate checks ring_size_bytes against spec §4.1's power-of-two ≥ 4KiB
// invariant, returning a ConfigError otherwise.
func Validate(sizeBytes int) error {
	if sizeBytes < constants.MinRingSizeBytes {
		return errs.ConfigError(fmt.Sprintf("ring_size_bytes must be >= %d", constants.MinRingSizeBytes), nil)
	}
	if sizeBytes&(sizeBytes-1) != 0 {
		return errs.ConfigError("ring_size_bytes must be a power of two", nil)
	}
	return nil
}

// New wraps the given map as a ring buffer for the named probe. recordSize
// is the probe's declared fixed record length; a length mismatch on Drain
// is a RingError, the record skipped rather than delivered partial.
func New(probeName string, m *ebpf.Map, recordSize int, dropMap *ebpf.Map) (*Ring, error) {
	reader, err := ringbuf.NewReader(m)
	if err != nil {
		return nil, errs.RingError(fmt.Sprintf("opening ring for probe %s", probeName), err)
	}
	return &Ring{
		probe:      probeName,
		recordSize: recordSize,
		reader:     reader,
		dropMap:    dropMap,
	}, nil
}

// Drain reads records until no more are immediately available or the
// bounded poll timeout elapses (default constants.RingDrainPollTimeout).
// Malformed records (size mismatch) are logged by the caller via the
// returned error and skipped — never delivered partial.
func (r *Ring) Drain(ctx context.Context, timeout time.Duration, out func(Record)) error {
	if timeout <= 0 {
		timeout = constants.RingDrainPollTimeout
	}
	deadline := time.Now().Add(timeout)
	r.reader.SetDeadline(deadline)
	var skipped error

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := r.reader.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded) {
				return skipped
			}
			if errors.Is(err, ringbuf.ErrFlushed) {
				r.sampleDrops()
				continue
			}
			return errs.RingError(fmt.Sprintf("reading ring for probe %s", r.probe), err)
		}

		if len(rec.RawSample) != r.recordSize {
			// record-atomicity invariant: skip, never deliver partial.
			skipped = errs.RingError(fmt.Sprintf("probe %s: record of %d bytes, want %d",
				r.probe, len(rec.RawSample), r.recordSize), nil)
			continue
		}

		out(Record{Probe: r.probe, Raw: rec.RawSample})
	}
	return skipped
}

// sampleDrops diffs the kernel-side overflow counter (when present) against
// the last sampled value and adds the delta to the local dropped counter.
func (r *Ring) sampleDrops() {
	r.dropped.Add(1)
	if r.dropMap == nil {
		return
	}
	var v uint64
	if err := r.dropMap.Lookup(uint32(0), &v); err == nil && v > r.lastDropVal {
		r.dropped.Add(v - r.lastDropVal)
		r.lastDropVal = v
	}
}

// Dropped returns the cumulative dropped-record count for this ring,
// exported as honeybeepf_dropped_records_total{probe=...} (spec §6).
func (r *Ring) Dropped() uint64 { return r.dropped.Load() }

// Close releases the underlying reader. Safe to call multiple times.
func (r *Ring) Close() error {
	if r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
