// Package nccl implements the NCCL collective/point-to-point call probe
// (spec §4.2/§3): a uprobe/uretprobe pair per entry point on the configured
// NCCL library, correlated by the kernel-side pending map and reporting
// per-op-kind, per-datatype call duration.
package nccl

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
	"github.com/sureshkrishnan-v/honeybeepf/internal/errs"
	"github.com/sureshkrishnan-v/honeybeepf/internal/loader"
	"github.com/sureshkrishnan-v/honeybeepf/internal/probe"
	"github.com/sureshkrishnan-v/honeybeepf/internal/ring"
	"github.com/sureshkrishnan-v/honeybeepf/internal/schema"
)

//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -cc clang -cflags "-O2 -g -Wall -Werror" -target amd64 ncclTracer ../../../bpf/nccl.c -- -I../../../bpf

var ncclCallEventSize = binary.Size(schema.NcclCallEvent{})

// Module implements probe.Module for NCCL call latency. The attach target
// is resolved from config via deps.Resolver (probes.nccl.library_path, a
// glob such as "libnccl.so*"); if no loaded library matches, Init returns
// an AttachError and the supervisor disables just this probe rather than
// failing the whole agent (spec §4.2).
type Module struct {
	deps   probe.Dependencies
	logger *zap.Logger

	objs  ncclTracerObjects
	links []link.Link
	r     *ring.Ring
}

// New constructs an unattached Module.
func New() *Module { return &Module{} }

func (m *Module) Name() string { return constants.ProbeNccl }

// collective pairs a library symbol with the BPF program that captures its
// entry-side arguments; the return side shares one program across every
// symbol (see bpf/nccl.c).
type collective struct {
	symbol string
	entry  *ebpf.Program
}

func (m *Module) Init(_ context.Context, deps probe.Dependencies) error {
	m.deps = deps
	m.logger = deps.Logger

	if err := loader.Preflight(); err != nil {
		return err
	}

	pattern := "libnccl.so*"
	if deps.Config != nil && deps.Config.LibraryPath != "" {
		pattern = deps.Config.LibraryPath
	}
	libPath, err := deps.Resolver.ResolveLibrary(pattern)
	if err != nil {
		return errs.AttachError(fmt.Sprintf("resolving nccl library matching %q", pattern), err)
	}

	if err := loadNcclTracerObjects(&m.objs, nil); err != nil {
		return errs.LoadError("loading nccl BPF objects", err)
	}

	ex, err := link.OpenExecutable(libPath)
	if err != nil {
		m.Stop(context.Background())
		return errs.AttachError(fmt.Sprintf("opening %s for uprobe attach", libPath), err)
	}

	collectives := []collective{
		{"ncclAllReduce", m.objs.UprobeNcclAllReduce},
		{"ncclBroadcast", m.objs.UprobeNcclBroadcast},
		{"ncclAllGather", m.objs.UprobeNcclAllGather},
		{"ncclReduceScatter", m.objs.UprobeNcclReduceScatter},
		{"ncclReduce", m.objs.UprobeNcclReduce},
		{"ncclAllToAll", m.objs.UprobeNcclAllToAll},
		{"ncclSend", m.objs.UprobeNcclSend},
		{"ncclRecv", m.objs.UprobeNcclRecv},
		{"ncclGroupStart", m.objs.UprobeNcclGroupStart},
		{"ncclGroupEnd", m.objs.UprobeNcclGroupEnd},
	}

	for _, c := range collectives {
		up, err := ex.Uprobe(c.symbol, c.entry, nil)
		if err != nil {
			m.Stop(context.Background())
			return errs.AttachError(fmt.Sprintf("attaching %s uprobe", c.symbol), err)
		}
		m.links = append(m.links, up)

		ret, err := ex.Uretprobe(c.symbol, m.objs.UretprobeNcclReturn, nil)
		if err != nil {
			m.Stop(context.Background())
			return errs.AttachError(fmt.Sprintf("attaching %s uretprobe", c.symbol), err)
		}
		m.links = append(m.links, ret)
	}

	r, err := ring.New(m.Name(), m.objs.NcclCallEvents, ncclCallEventSize, nil)
	if err != nil {
		m.Stop(context.Background())
		return err
	}
	m.r = r

	deps.Aggregator.RegisterHistogram(constants.MetricNcclCallDurationNs, []string{constants.LabelOp, constants.LabelDatatype}, constants.NcclCallDurationNsBuckets)

	deps.Demux.Register(m.r, m.handle)
	return nil
}

func (m *Module) handle(rec ring.Record) error {
	ev, err := schema.Decode[schema.NcclCallEvent](rec.Raw)
	if err != nil {
		return fmt.Errorf("decoding nccl event: %w", err)
	}

	op := schema.NcclOpKind(ev.OpKind).String()
	datatype := schema.NcclDataType(ev.DataType).String()
	labels := map[string]string{constants.LabelOp: op, constants.LabelDatatype: datatype}
	m.deps.Aggregator.Observe(constants.MetricNcclCallDurationNs, labels, float64(ev.DurationNs))
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
