// Package gpuopen implements the GPU device-open probe (spec §4.2/§3): a
// kprobe/kretprobe pair on the GPU driver's device-open entry point,
// correlated by tid, reporting the opened device path, the open() flags,
// and distinguishing success from failure by return code.
package gpuopen

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cilium/ebpf/link"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
	"github.com/sureshkrishnan-v/honeybeepf/internal/errs"
	"github.com/sureshkrishnan-v/honeybeepf/internal/loader"
	"github.com/sureshkrishnan-v/honeybeepf/internal/probe"
	"github.com/sureshkrishnan-v/honeybeepf/internal/ring"
	"github.com/sureshkrishnan-v/honeybeepf/internal/schema"
)

//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -cc clang -cflags "-O2 -g -Wall -Werror" -target amd64 gpuOpenTracer ../../../bpf/gpu_open.c -- -I../../../bpf

var gpuOpenEventSize = binary.Size(schema.GpuOpenEvent{})

// Module implements probe.Module for GPU device-open observation.
type Module struct {
	deps   probe.Dependencies
	logger *zap.Logger

	objs  gpuOpenTracerObjects
	links []link.Link
	r     *ring.Ring
}

// New constructs an unattached Module.
func New() *Module { return &Module{} }

func (m *Module) Name() string { return constants.ProbeGpuOpen }

func (m *Module) Init(_ context.Context, deps probe.Dependencies) error {
	m.deps = deps
	m.logger = deps.Logger

	if err := loader.Preflight(); err != nil {
		return err
	}

	if err := loadGpuOpenTracerObjects(&m.objs, nil); err != nil {
		return errs.LoadError("loading gpu_open BPF objects", err)
	}

	kpOpen, err := link.Kprobe("nvidia_open", m.objs.KprobeNvidiaOpen, nil)
	if err != nil {
		m.Stop(context.Background())
		return errs.AttachError("attaching nvidia_open kprobe", err)
	}
	m.links = append(m.links, kpOpen)

	krpOpen, err := link.Kretprobe("nvidia_open", m.objs.KretprobeNvidiaOpen, nil)
	if err != nil {
		m.Stop(context.Background())
		return errs.AttachError("attaching nvidia_open kretprobe", err)
	}
	m.links = append(m.links, krpOpen)

	r, err := ring.New(m.Name(), m.objs.GpuOpenEvents, gpuOpenEventSize, nil)
	if err != nil {
		m.Stop(context.Background())
		return err
	}
	m.r = r

	deps.Aggregator.RegisterCounter(constants.MetricGpuOpenEventsTotal, []string{constants.LabelDevice})

	deps.Demux.Register(m.r, m.handle)
	return nil
}

func (m *Module) handle(rec ring.Record) error {
	ev, err := schema.Decode[schema.GpuOpenEvent](rec.Raw)
	if err != nil {
		return fmt.Errorf("decoding gpu_open event: %w", err)
	}

	device := ev.DevicePathString()
	if device == "" {
		device = constants.UnknownLabelValue
	}

	labels := map[string]string{constants.LabelDevice: device}
	m.deps.Aggregator.Inc(constants.MetricGpuOpenEventsTotal, labels, 1)
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
