// Package netlatency implements the network latency probe (spec §4.2/§3):
// tcp_connect/tcp_close kprobes correlated by tid, with peer classification
// performed in userspace (spec decision, see internal/bpfutil).
package netlatency

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/cilium/ebpf/link"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/honeybeepf/internal/bpfutil"
	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
	"github.com/sureshkrishnan-v/honeybeepf/internal/errs"
	"github.com/sureshkrishnan-v/honeybeepf/internal/loader"
	"github.com/sureshkrishnan-v/honeybeepf/internal/probe"
	"github.com/sureshkrishnan-v/honeybeepf/internal/ring"
	"github.com/sureshkrishnan-v/honeybeepf/internal/schema"
)

//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -cc clang -cflags "-O2 -g -Wall -Werror" -target amd64 networkLatencyTracer ../../../bpf/network_latency.c -- -I../../../bpf

var networkLatencyEventSize = binary.Size(schema.NetworkLatencyEvent{})

// Module implements probe.Module for TCP connection latency.
type Module struct {
	deps   probe.Dependencies
	logger *zap.Logger

	objs       networkLatencyTracerObjects
	links      []link.Link
	r          *ring.Ring
	localAddrs []net.IP
}

// New constructs an unattached Module.
func New() *Module { return &Module{} }

func (m *Module) Name() string { return constants.ProbeNetworkLatency }

func (m *Module) Init(_ context.Context, deps probe.Dependencies) error {
	m.deps = deps
	m.logger = deps.Logger

	if err := loader.Preflight(); err != nil {
		return err
	}

	if err := loadNetworkLatencyTracerObjects(&m.objs, nil); err != nil {
		return errs.LoadError("loading network_latency BPF objects", err)
	}

	kpConnect, err := link.Kprobe("tcp_connect", m.objs.KprobeTcpConnect, nil)
	if err != nil {
		m.Stop(context.Background())
		return errs.AttachError("attaching tcp_connect kprobe", err)
	}
	m.links = append(m.links, kpConnect)

	kpClose, err := link.Kprobe("tcp_close", m.objs.KprobeTcpClose, nil)
	if err != nil {
		m.Stop(context.Background())
		return errs.AttachError("attaching tcp_close kprobe", err)
	}
	m.links = append(m.links, kpClose)

	r, err := ring.New(m.Name(), m.objs.NetworkLatencyEvents, networkLatencyEventSize, nil)
	if err != nil {
		m.Stop(context.Background())
		return err
	}
	m.r = r

	if addrs, aerr := bpfutil.LocalAddrs(); aerr == nil {
		m.localAddrs = addrs
	} else if m.logger != nil {
		m.logger.Warn("resolving local addresses; peer classification defaults to external", zap.Error(aerr))
	}

	deps.Aggregator.RegisterHistogram(constants.MetricNetworkLatencyNs, []string{constants.LabelDirection, constants.LabelPeerClass}, constants.NetworkLatencyNsBuckets)

	deps.Demux.Register(m.r, m.handle)
	return nil
}

func (m *Module) handle(rec ring.Record) error {
	ev, err := schema.Decode[schema.NetworkLatencyEvent](rec.Raw)
	if err != nil {
		return fmt.Errorf("decoding network_latency event: %w", err)
	}

	class := bpfutil.ClassifyPeer(ev.DAddrIP(), m.localAddrs)
	direction := schema.Direction(ev.Direction).String()

	labels := map[string]string{constants.LabelDirection: direction, constants.LabelPeerClass: string(class)}
	m.deps.Aggregator.Observe(constants.MetricNetworkLatencyNs, labels, float64(ev.LatencyNs))
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
