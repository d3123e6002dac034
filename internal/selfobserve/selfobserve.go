// Package selfobserve exposes HoneybeePF's own pipeline health over HTTP —
// /healthz, /readyz, and a Prometheus-format /metrics — separate from the
// domain metrics the aggregator ships via internal/sink. Adapted from the
// teacher's internal/exporter (standalone HTTP server) and
// internal/export/prometheus.go (bus-stats collection loop).
package selfobserve

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
)

// StatsSource reports the pipeline counters this endpoint samples.
type StatsSource interface {
	DroppedRecords(probe string) uint64
	ActiveProbes() int
	CardinalityDropped() uint64
	HandlerErrors() uint64
	ExportBatchesDropped() uint64
}

// Server is the self-observability HTTP surface.
type Server struct {
	addr    string
	logger  *zap.Logger
	stats   StatsSource
	probes  []string
	server  *http.Server
	ready   atomic.Bool

	droppedRecords      *prometheus.CounterVec
	activeProbes        prometheus.Gauge
	cardinalityDropped  prometheus.Counter
	handlerErrors       prometheus.Counter
	exportBatchesDrop   prometheus.Counter
}

// New creates a self-observability server listening on addr.
func New(addr string, probes []string, stats StatsSource, logger *zap.Logger) *Server {
	s := &Server{
		addr:   addr,
		logger: logger,
		stats:  stats,
		probes: probes,

		droppedRecords: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricDroppedRecordsTotal,
			Help: "Total ring buffer records dropped, per probe.",
		}, []string{constants.LabelProbe}),

		activeProbes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: constants.MetricActiveProbes,
			Help: "Number of currently attached probes.",
		}),

		cardinalityDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: constants.MetricPipelineCardinalityDropped,
			Help: "Total metric series discarded due to the cardinality cap.",
		}),

		handlerErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: constants.MetricPipelineHandlerErrors,
			Help: "Total probe handler errors.",
		}),

		exportBatchesDrop: promauto.NewCounter(prometheus.CounterOpts{
			Name: constants.MetricPipelineExportBatchesDropped,
			Help: "Total export batches dropped (queue overflow or retry exhaustion).",
		}),
	}
	return s
}

// Run starts the HTTP server and the self-stats collection loop. Blocks
// until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(constants.PathMetrics, promhttp.Handler())
	mux.HandleFunc(constants.PathHealthz, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc(constants.PathReadyz, func(w http.ResponseWriter, r *http.Request) {
		if s.ready.Load() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready\n"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready\n"))
		}
	})

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  constants.HTTPReadTimeout,
		WriteTimeout: constants.HTTPWriteTimeout,
		IdleTimeout:  constants.HTTPIdleTimeout,
	}

	go func() {
		s.logger.Info("self-observability server listening", zap.String("addr", s.addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("self-observability server error", zap.Error(err))
		}
	}()

	go s.collectLoop(ctx)

	s.ready.Store(true)
	<-ctx.Done()
	return nil
}

func (s *Server) collectLoop(ctx context.Context) {
	ticker := time.NewTicker(constants.StatsCollectInterval)
	defer ticker.Stop()
	// The stats source reports cumulative totals; only the growth since the
	// previous sample is added to the Prometheus counters.
	var lastCard, lastHandler, lastExport uint64
	lastDropped := make(map[string]uint64)
	delta := func(cur uint64, last *uint64) float64 {
		if cur < *last {
			return 0
		}
		d := cur - *last
		*last = cur
		return float64(d)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.activeProbes.Set(float64(s.stats.ActiveProbes()))
			for _, p := range s.probes {
				last := lastDropped[p]
				s.droppedRecords.WithLabelValues(p).Add(delta(s.stats.DroppedRecords(p), &last))
				lastDropped[p] = last
			}
			s.cardinalityDropped.Add(delta(s.stats.CardinalityDropped(), &lastCard))
			s.handlerErrors.Add(delta(s.stats.HandlerErrors(), &lastHandler))
			s.exportBatchesDrop.Add(delta(s.stats.ExportBatchesDropped(), &lastExport))
		}
	}
}

// SetReady marks the server ready; used in tests/manual wiring in addition
// to the automatic flip in Run.
func (s *Server) SetReady() { s.ready.Store(true) }

// Stop gracefully shuts down the HTTP server within ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.ready.Store(false)
	if s.server == nil {
		return nil
	}
	stopCtx, cancel := context.WithTimeout(ctx, constants.ExporterShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("shutting down self-observability server: %w", err)
	}
	return nil
}
