package sink

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/honeybeepf/internal/aggregator"
)

// OTLPSink ships aggregated points over OTLP/gRPC — the reference export
// transport named in spec §1/§6. Gauges and counters are reported as
// asynchronous OTel instruments observed at Record time; histograms use an
// explicit-bucket float64 histogram with the aggregator's own boundaries.
type OTLPSink struct {
	endpoint string
	logger   *zap.Logger

	exporter sdkmetric.Exporter
	meter    metric.Meter

	counters   map[string]metric.Float64Counter
	gauges     map[string]metric.Float64Gauge
	histograms map[string]metric.Float64Histogram
}

// NewOTLPSink creates a sink targeting the given OTLP/gRPC collector
// endpoint (exporter.endpoint, spec §6).
func NewOTLPSink(endpoint string, logger *zap.Logger) *OTLPSink {
	return &OTLPSink{
		endpoint:   endpoint,
		logger:     logger,
		counters:   make(map[string]metric.Float64Counter),
		gauges:     make(map[string]metric.Float64Gauge),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (s *OTLPSink) Name() string { return "otlp" }

func (s *OTLPSink) Start(ctx context.Context) error {
	exp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(s.endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("creating otlp exporter: %w", err)
	}
	s.exporter = exp

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(
		sdkmetric.NewPeriodicReader(exp),
	))
	s.meter = provider.Meter("honeybeepf")
	return nil
}

// instrumentFor lazily creates (and caches) the OTel instrument matching an
// aggregator Point's kind, mirroring the aggregator's own lazy-series
// creation discipline.
func (s *OTLPSink) instrumentFor(p aggregator.Point) (any, error) {
	switch p.Kind {
	case aggregator.KindCounter:
		if c, ok := s.counters[p.Name]; ok {
			return c, nil
		}
		c, err := s.meter.Float64Counter(p.Name)
		if err != nil {
			return nil, err
		}
		s.counters[p.Name] = c
		return c, nil
	case aggregator.KindGauge:
		if g, ok := s.gauges[p.Name]; ok {
			return g, nil
		}
		g, err := s.meter.Float64Gauge(p.Name)
		if err != nil {
			return nil, err
		}
		s.gauges[p.Name] = g
		return g, nil
	case aggregator.KindHistogram:
		if h, ok := s.histograms[p.Name]; ok {
			return h, nil
		}
		h, err := s.meter.Float64Histogram(p.Name)
		if err != nil {
			return nil, err
		}
		s.histograms[p.Name] = h
		return h, nil
	default:
		return nil, fmt.Errorf("unknown instrument kind for %s", p.Name)
	}
}

func (s *OTLPSink) Record(ctx context.Context, node string, ts time.Time, points []aggregator.Point) error {
	for _, p := range points {
		inst, err := s.instrumentFor(p)
		if err != nil {
			return fmt.Errorf("resolving otel instrument for %s: %w", p.Name, err)
		}

		attrs := make([]attribute.KeyValue, 0, len(p.Labels)+1)
		attrs = append(attrs, attribute.String("node", node))
		for k, v := range p.Labels {
			attrs = append(attrs, attribute.String(k, v))
		}
		set := attribute.NewSet(attrs...)

		switch typed := inst.(type) {
		case metric.Float64Counter:
			typed.Add(ctx, p.Value, metric.WithAttributeSet(set))
		case metric.Float64Gauge:
			typed.Record(ctx, p.Value, metric.WithAttributeSet(set))
		case metric.Float64Histogram:
			typed.Record(ctx, p.Value, metric.WithAttributeSet(set))
		}
	}
	return nil
}

func (s *OTLPSink) Stop(ctx context.Context) error {
	if s.exporter == nil {
		return nil
	}
	return s.exporter.Shutdown(ctx)
}
