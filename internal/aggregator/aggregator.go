// Package aggregator implements HoneybeePF's metric aggregator (spec §4.5):
// hand-rolled Counter/Gauge/Histogram instruments with lazy series
// creation, a per-instrument cardinality cap, and "unknown" label-fill —
// behavior a generic Prometheus client vector does not expose as
// primitives, so this is deliberately not a *Vec wrapper.
package aggregator

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
)

// Kind identifies an instrument's semantics.
type Kind int

const (
	KindCounter Kind = iota
	KindGauge
	KindHistogram
)

// instrument holds one registered metric's declared shape and its live
// series map, keyed by canonicalized label tuple.
type instrument struct {
	name       string
	kind       Kind
	labelNames []string
	buckets    []float64

	mu       sync.RWMutex
	series   map[string]*seriesValue
}

// seriesValue holds one label-tuple's live value. Counters use an atomic;
// Gauges use a per-series mutex around the value; Histograms use a
// per-series mutex guarding bucket counts.
type seriesValue struct {
	labels map[string]string

	counter atomic.Uint64

	histMu      sync.Mutex
	bucketCount []uint64
	sum         float64
	count       uint64

	gaugeVal float64
	gaugeMu  sync.Mutex
}

// Aggregator owns every registered instrument for one process.
type Aggregator struct {
	logger *zap.Logger

	mu          sync.RWMutex
	instruments map[string]*instrument

	cardinalityCap     int
	cardinalityDropped atomic.Uint64
	handlerErrors      atomic.Uint64
}

// New creates an Aggregator with the given per-instrument cardinality cap
// (spec §4.5/§6's cardinality_cap, default constants.DefaultCardinalityCap).
func New(cardinalityCap int, logger *zap.Logger) *Aggregator {
	if cardinalityCap <= 0 {
		cardinalityCap = constants.DefaultCardinalityCap
	}
	return &Aggregator{
		logger:         logger,
		instruments:    make(map[string]*instrument),
		cardinalityCap: cardinalityCap,
	}
}

// RegisterCounter declares a monotonic counter instrument.
func (a *Aggregator) RegisterCounter(name string, labelNames []string) {
	a.register(name, KindCounter, labelNames, nil)
}

// RegisterGauge declares a gauge instrument.
func (a *Aggregator) RegisterGauge(name string, labelNames []string) {
	a.register(name, KindGauge, labelNames, nil)
}

// RegisterHistogram declares a histogram instrument with fixed bucket
// boundaries decided at registration time (spec §4.5).
func (a *Aggregator) RegisterHistogram(name string, labelNames []string, buckets []float64) {
	a.register(name, KindHistogram, labelNames, buckets)
}

func (a *Aggregator) register(name string, kind Kind, labelNames []string, buckets []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.instruments[name] = &instrument{
		name:       name,
		kind:       kind,
		labelNames: labelNames,
		buckets:    buckets,
		series:     make(map[string]*seriesValue),
	}
}

// Inc adds delta to a counter series, creating it if not yet seen (subject
// to the cardinality cap).
func (a *Aggregator) Inc(name string, labels map[string]string, delta uint64) {
	s := a.seriesFor(name, labels, KindCounter)
	if s == nil {
		return
	}
	s.counter.Add(delta)
}

// Set assigns a gauge series's current value.
func (a *Aggregator) Set(name string, labels map[string]string, value float64) {
	s := a.seriesFor(name, labels, KindGauge)
	if s == nil {
		return
	}
	s.gaugeMu.Lock()
	s.gaugeVal = value
	s.gaugeMu.Unlock()
}

// Observe records a value into a histogram series's buckets and sum/count.
func (a *Aggregator) Observe(name string, labels map[string]string, value float64) {
	inst := a.lookup(name)
	if inst == nil {
		a.handlerErrors.Add(1)
		if a.logger != nil {
			a.logger.Warn("observe on unregistered instrument", zap.String("instrument", name))
		}
		return
	}
	s := a.seriesFor(name, labels, KindHistogram)
	if s == nil {
		return
	}
	s.histMu.Lock()
	defer s.histMu.Unlock()
	s.sum += value
	s.count++
	for i, b := range inst.buckets {
		if value <= b {
			s.bucketCount[i]++
		}
	}
}

// lookup returns the instrument by name, or nil if unregistered.
func (a *Aggregator) lookup(name string) *instrument {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.instruments[name]
}

// seriesFor resolves (creating if needed) the series for a label tuple.
// Unknown label keys are a handler bug (logged, observation dropped).
// Missing declared labels are filled with "unknown". Exceeding the
// cardinality cap discards the attempted series entirely — it is never
// created (spec §4.5, §8 scenario 4).
func (a *Aggregator) seriesFor(name string, labels map[string]string, kind Kind) *seriesValue {
	inst := a.lookup(name)
	if inst == nil {
		a.handlerErrors.Add(1)
		if a.logger != nil {
			a.logger.Warn("update on unregistered instrument", zap.String("instrument", name))
		}
		return nil
	}
	if inst.kind != kind {
		a.handlerErrors.Add(1)
		return nil
	}

	canon, ok := canonicalize(inst.labelNames, labels)
	if !ok {
		a.handlerErrors.Add(1)
		if a.logger != nil {
			a.logger.Warn("unknown label on instrument", zap.String("instrument", name))
		}
		return nil
	}

	inst.mu.RLock()
	s, found := inst.series[canon]
	inst.mu.RUnlock()
	if found {
		return s
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	// Re-check under write lock.
	if s, found := inst.series[canon]; found {
		return s
	}
	if len(inst.series) >= a.cardinalityCap {
		a.cardinalityDropped.Add(1)
		if a.logger != nil {
			a.logger.Warn("cardinality cap exceeded, series dropped",
				zap.String("instrument", name), zap.Int("cap", a.cardinalityCap))
		}
		return nil
	}

	s = &seriesValue{labels: labelValues(inst.labelNames, labels)}
	if inst.kind == KindHistogram {
		s.bucketCount = make([]uint64, len(inst.buckets))
	}
	inst.series[canon] = s
	return s
}

// canonicalize builds a stable key from the instrument's declared label
// names, filling missing values with "unknown" and rejecting keys the
// instrument never declared.
func canonicalize(declared []string, given map[string]string) (string, bool) {
	declaredSet := make(map[string]bool, len(declared))
	for _, d := range declared {
		declaredSet[d] = true
	}
	for k := range given {
		if !declaredSet[k] {
			return "", false
		}
	}

	names := append([]string(nil), declared...)
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		v, ok := given[name]
		if !ok || v == "" {
			v = constants.UnknownLabelValue
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(v)
		sb.WriteByte(',')
	}
	return sb.String(), true
}

func labelValues(declared []string, given map[string]string) map[string]string {
	out := make(map[string]string, len(declared))
	for _, name := range declared {
		v, ok := given[name]
		if !ok || v == "" {
			v = constants.UnknownLabelValue
		}
		out[name] = v
	}
	return out
}

// CardinalityDropped returns the total number of series discarded due to
// the cardinality cap, across all instruments.
func (a *Aggregator) CardinalityDropped() uint64 { return a.cardinalityDropped.Load() }

// HandlerErrors returns the total number of malformed update calls
// (unregistered instrument, unknown label, kind mismatch).
func (a *Aggregator) HandlerErrors() uint64 { return a.handlerErrors.Load() }

// Point is one exported observation: an instrument name, its label tuple,
// and its current value(s), ready to hand to a Sink.
type Point struct {
	Name    string
	Kind    Kind
	Labels  map[string]string
	Value   float64 // counter/gauge value, or histogram sum
	Count   uint64  // histogram only
	Buckets map[float64]uint64
}

// Snapshot copies every series's current value for export, without
// resetting them — counters and gauges are cumulative, matching OTLP's
// cumulative temporality (spec §4.6).
func (a *Aggregator) Snapshot() []Point {
	a.mu.RLock()
	insts := make([]*instrument, 0, len(a.instruments))
	for _, inst := range a.instruments {
		insts = append(insts, inst)
	}
	a.mu.RUnlock()

	var out []Point
	for _, inst := range insts {
		inst.mu.RLock()
		for _, s := range inst.series {
			switch inst.kind {
			case KindCounter:
				out = append(out, Point{Name: inst.name, Kind: KindCounter, Labels: s.labels, Value: float64(s.counter.Load())})
			case KindGauge:
				s.gaugeMu.Lock()
				v := s.gaugeVal
				s.gaugeMu.Unlock()
				out = append(out, Point{Name: inst.name, Kind: KindGauge, Labels: s.labels, Value: v})
			case KindHistogram:
				s.histMu.Lock()
				buckets := make(map[float64]uint64, len(inst.buckets))
				for i, b := range inst.buckets {
					buckets[b] = s.bucketCount[i]
				}
				out = append(out, Point{
					Name: inst.name, Kind: KindHistogram, Labels: s.labels,
					Value: s.sum, Count: s.count, Buckets: buckets,
				})
				s.histMu.Unlock()
			}
		}
		inst.mu.RUnlock()
	}
	return out
}

// ErrUnregistered is returned by callers that look up an instrument which
// was never registered — kept for symmetry with the rest of the taxonomy.
var ErrUnregistered = fmt.Errorf("instrument not registered")
