// Package blockio implements the block I/O latency probe (spec §4.2/§3):
// block_rq_issue/block_rq_complete tracepoints correlated by tid, reporting
// per-device byte counts and completion latency.
package blockio

import (
	"encoding/binary"
	"fmt"

	"context"

	"github.com/cilium/ebpf/link"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
	"github.com/sureshkrishnan-v/honeybeepf/internal/errs"
	"github.com/sureshkrishnan-v/honeybeepf/internal/loader"
	"github.com/sureshkrishnan-v/honeybeepf/internal/probe"
	"github.com/sureshkrishnan-v/honeybeepf/internal/ring"
	"github.com/sureshkrishnan-v/honeybeepf/internal/schema"
)

//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -cc clang -cflags "-O2 -g -Wall -Werror" -target amd64 blockIoTracer ../../../bpf/block_io.c -- -I../../../bpf

var blockIoEventSize = binary.Size(schema.BlockIoEvent{})

// Module implements probe.Module for block I/O completion latency.
type Module struct {
	deps   probe.Dependencies
	logger *zap.Logger

	objs  blockIoTracerObjects
	links []link.Link
	r     *ring.Ring
}

// New constructs an unattached Module.
func New() *Module { return &Module{} }

func (m *Module) Name() string { return constants.ProbeBlockIO }

func (m *Module) Init(_ context.Context, deps probe.Dependencies) error {
	m.deps = deps
	m.logger = deps.Logger

	if err := loader.Preflight(); err != nil {
		return err
	}

	if err := loadBlockIoTracerObjects(&m.objs, nil); err != nil {
		return errs.LoadError("loading block_io BPF objects", err)
	}

	tpIssue, err := link.Tracepoint("block", "block_rq_issue", m.objs.TracepointBlockRqIssue, nil)
	if err != nil {
		m.Stop(context.Background())
		return errs.AttachError("attaching block_rq_issue tracepoint", err)
	}
	m.links = append(m.links, tpIssue)

	tpComplete, err := link.Tracepoint("block", "block_rq_complete", m.objs.TracepointBlockRqComplete, nil)
	if err != nil {
		m.Stop(context.Background())
		return errs.AttachError("attaching block_rq_complete tracepoint", err)
	}
	m.links = append(m.links, tpComplete)

	r, err := ring.New(m.Name(), m.objs.BlockIoEvents, blockIoEventSize, nil)
	if err != nil {
		m.Stop(context.Background())
		return err
	}
	m.r = r

	deps.Aggregator.RegisterCounter(constants.MetricBlockIOEventsTotal, []string{constants.LabelDevice, constants.LabelOp})
	deps.Aggregator.RegisterCounter(constants.MetricBlockIOBytesTotal, []string{constants.LabelDevice, constants.LabelOp})
	deps.Aggregator.RegisterHistogram(constants.MetricBlockIOLatencyNs, []string{constants.LabelDevice, constants.LabelOp}, constants.BlockIOLatencyNsBuckets)

	deps.Demux.Register(m.r, m.handle)
	return nil
}

func (m *Module) handle(rec ring.Record) error {
	ev, err := schema.Decode[schema.BlockIoEvent](rec.Raw)
	if err != nil {
		return fmt.Errorf("decoding block_io event: %w", err)
	}

	op := schema.OpKind(ev.OpKind).String()
	device := ev.DevicePathString()
	if device == "" {
		device = constants.UnknownLabelValue
	}

	labels := map[string]string{constants.LabelDevice: device, constants.LabelOp: op}
	m.deps.Aggregator.Inc(constants.MetricBlockIOEventsTotal, labels, 1)
	m.deps.Aggregator.Inc(constants.MetricBlockIOBytesTotal, labels, ev.Bytes)
	m.deps.Aggregator.Observe(constants.MetricBlockIOLatencyNs, labels, float64(ev.LatencyNs))
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.r != nil {
		m.r.Close()
	}
	for _, l := range m.links {
		l.Close()
	}
	m.objs.Close()
	return nil
}

// Dropped returns this probe's ring's cumulative dropped-record count.
func (m *Module) Dropped() uint64 {
	if m.r == nil {
		return 0
	}
	return m.r.Dropped()
}
