// Package supervisor is the central orchestrator for HoneybeePF (spec
// §4.7): it owns startup order (aggregator → exporter → probe attach →
// demultiplexer), shutdown order on signal, and per-probe attach-failure
// isolation. Generalized from the teacher's internal/agent.Runtime.Run.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/honeybeepf/internal/aggregator"
	"github.com/sureshkrishnan-v/honeybeepf/internal/config"
	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
	"github.com/sureshkrishnan-v/honeybeepf/internal/demux"
	"github.com/sureshkrishnan-v/honeybeepf/internal/exporter"
	"github.com/sureshkrishnan-v/honeybeepf/internal/probe"
	"github.com/sureshkrishnan-v/honeybeepf/internal/registry"
	"github.com/sureshkrishnan-v/honeybeepf/internal/resolve"
	"github.com/sureshkrishnan-v/honeybeepf/internal/selfobserve"
	"github.com/sureshkrishnan-v/honeybeepf/internal/sink"
)

// Supervisor wires together and drives every pipeline component for one
// agent process lifetime.
type Supervisor struct {
	cfg    *config.Config
	logger *zap.Logger

	agg      *aggregator.Aggregator
	dmx      *demux.Demux
	exp      *exporter.Exporter
	self     *selfobserve.Server
	resolver *resolve.LibraryResolver

	attached []probe.Module
}

// New builds a Supervisor from config, wiring the aggregator, the chosen
// sink, the exporter, and the self-observability server. It does not yet
// load or attach any probe.
func New(cfg *config.Config, logger *zap.Logger) (*Supervisor, error) {
	agg := aggregator.New(cfg.CardinalityCap, logger.Named("aggregator"))
	dmx := demux.New(logger.Named("demux"))

	var s sink.Sink
	switch cfg.Exporter.Protocol {
	case constants.ExporterProtoNATS:
		s = sink.NewNATSSink(cfg.Exporter.Endpoint, logger.Named("sink.nats"))
	case constants.ExporterProtoOTLP:
		s = sink.NewOTLPSink(cfg.Exporter.Endpoint, logger.Named("sink.otlp"))
	default:
		return nil, fmt.Errorf("unsupported exporter protocol %q", cfg.Exporter.Protocol)
	}

	flushInterval := constants.DefaultFlushInterval
	if cfg.Exporter.FlushIntervalMs > 0 {
		flushInterval = time.Duration(cfg.Exporter.FlushIntervalMs) * time.Millisecond
	}
	exp := exporter.New(agg, s, cfg.Agent.NodeName, flushInterval, logger.Named("exporter"))

	sv := &Supervisor{
		cfg:      cfg,
		logger:   logger,
		agg:      agg,
		dmx:      dmx,
		exp:      exp,
		resolver: resolve.NewLibraryResolver(),
	}

	sv.self = selfobserve.New(cfg.Agent.MetricsAddr, registry.Names(), sv, logger.Named("selfobserve"))
	return sv, nil
}

// Run drives the full lifecycle: start the exporter and self-observability
// surface, attach every enabled probe (isolating attach failures to just
// that probe), run the demultiplexer, then block until ctx is cancelled
// and tear everything down in reverse order (spec §4.7).
func (sv *Supervisor) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() { errCh <- sv.exp.Run(ctx) }()
	go func() { errCh <- sv.self.Run(ctx) }()

	for _, name := range registry.Names() {
		if !sv.cfg.ProbeEnabled(name) {
			sv.logger.Info("probe disabled by config", zap.String("probe", name))
			continue
		}
		sv.attachProbe(ctx, name)
	}

	if len(sv.attached) == 0 {
		sv.logger.Warn("no probes attached; running with exporter and self-observability only")
	}

	go sv.dmx.Run(ctx)

	for _, m := range sv.attached {
		go func(m probe.Module) {
			if err := m.Start(ctx); err != nil && ctx.Err() == nil {
				sv.logger.Error("probe error", zap.String("probe", m.Name()), zap.Error(err))
			}
		}(m)
	}

	sv.logger.Info("honeybeepf running", zap.Int("probes_attached", len(sv.attached)))

	<-ctx.Done()
	sv.logger.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	for _, m := range sv.attached {
		if err := m.Stop(stopCtx); err != nil {
			sv.logger.Warn("error stopping probe", zap.String("probe", m.Name()), zap.Error(err))
		}
	}

	select {
	case err := <-errCh:
		if err != nil {
			sv.logger.Warn("component returned error during shutdown", zap.Error(err))
		}
	case <-stopCtx.Done():
	}

	return nil
}

// attachProbe constructs, initializes, and registers one probe. An attach
// failure here is logged and the probe is skipped — never fatal to the
// rest of the agent (spec §4.2).
func (sv *Supervisor) attachProbe(ctx context.Context, name string) {
	ctor, ok := registry.Lookup(name)
	if !ok {
		sv.logger.Warn("configured probe has no registered constructor", zap.String("probe", name))
		return
	}
	m := ctor()

	deps := probe.Dependencies{
		Logger:     sv.logger.Named(name),
		Config:     sv.cfg.ProbeConf(name),
		Aggregator: sv.agg,
		Resolver:   sv.resolver,
		Demux:      sv.dmx,
		NodeName:   sv.cfg.Agent.NodeName,
	}

	if err := m.Init(ctx, deps); err != nil {
		sv.logger.Warn("probe attach failed; continuing without it",
			zap.String("probe", name), zap.Error(err))
		return
	}
	sv.attached = append(sv.attached, m)
	sv.logger.Info("probe attached", zap.String("probe", name))
}

// ringStats is implemented by probe modules exposing their ring's drop
// counter; satisfied by every internal/probes/* module.
type ringStats interface {
	Dropped() uint64
}

// DroppedRecords implements selfobserve.StatsSource.
func (sv *Supervisor) DroppedRecords(probeName string) uint64 {
	for _, m := range sv.attached {
		if m.Name() != probeName {
			continue
		}
		if rs, ok := m.(ringStats); ok {
			return rs.Dropped()
		}
	}
	return 0
}

// ActiveProbes implements selfobserve.StatsSource.
func (sv *Supervisor) ActiveProbes() int { return len(sv.attached) }

// CardinalityDropped implements selfobserve.StatsSource.
func (sv *Supervisor) CardinalityDropped() uint64 { return sv.agg.CardinalityDropped() }

// HandlerErrors implements selfobserve.StatsSource.
func (sv *Supervisor) HandlerErrors() uint64 {
	return sv.agg.HandlerErrors() + sv.dmx.HandlerErrors()
}

// ExportBatchesDropped implements selfobserve.StatsSource.
func (sv *Supervisor) ExportBatchesDropped() uint64 { return sv.exp.BatchesDropped() }
