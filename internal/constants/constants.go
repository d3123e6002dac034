// Package constants provides all named constants for HoneybeePF.
// Eliminates magic numbers and hardcoded values throughout the codebase.
// All tuning parameters, sizes, timeouts, and keys are defined here.
package constants

import "time"

// ─── Agent Defaults ────────────────────────────────────────────────
const (
	// DefaultMetricsAddr is the default HTTP listen address for self-observability.
	DefaultMetricsAddr = ":9090"

	// DefaultLogLevel is the default structured logging level.
	DefaultLogLevel = "info"

	// DefaultConfigPath is the default YAML config file path.
	DefaultConfigPath = "honeybeepf.yaml"

	// Version is the current agent version.
	Version = "1.0.0"
)

// ─── Environment Variable Keys ─────────────────────────────────────
const (
	EnvMetricsAddr = "HONEYBEEPF_METRICS_ADDR"
	EnvNodeName    = "HONEYBEEPF_NODE_NAME"
	EnvLogLevel    = "HONEYBEEPF_LOG_LEVEL"
	EnvExporterEp  = "HONEYBEEPF_EXPORTER_ENDPOINT"
)

// ─── Ring Buffer ───────────────────────────────────────────────────
const (
	// MinRingSizeBytes is the minimum allowed ring_size_bytes (§6).
	MinRingSizeBytes = 4 * 1024

	// DefaultRingSizeBytes is the fallback ring buffer size per probe.
	DefaultRingSizeBytes = 256 * 1024

	// RingDrainPollTimeout bounds how long a single Drain call blocks
	// waiting for more records before returning control to the worker.
	RingDrainPollTimeout = 100 * time.Millisecond
)

// ─── Correlation ───────────────────────────────────────────────────
const (
	// DefaultCorrelationMapSize is the default bound on in-flight pending calls.
	DefaultCorrelationMapSize = 10240
)

// ─── Cardinality ───────────────────────────────────────────────────
const (
	// DefaultCardinalityCap bounds the number of distinct label-tuples per instrument.
	DefaultCardinalityCap = 10000

	// UnknownLabelValue fills a declared-but-missing label.
	UnknownLabelValue = "unknown"
)

// ─── Demultiplexer ─────────────────────────────────────────────────
const (
	// MaxDemuxWorkers bounds the default worker pool size (min(this, NumCPU)).
	MaxDemuxWorkers = 8

	// MinDemuxWorkers is the minimum allowed worker pool size.
	MinDemuxWorkers = 1

	// DemuxShutdownGrace bounds how long workers are given to finish an
	// in-flight record after cancellation before being abandoned.
	DemuxShutdownGrace = 3 * time.Second
)

// ─── Exporter ──────────────────────────────────────────────────────
const (
	// DefaultFlushInterval is the exporter.flush_interval_ms default.
	DefaultFlushInterval = 10 * time.Second

	// ExporterQueueSize bounds the exporter's inbound batch queue.
	ExporterQueueSize = 1024

	// ExporterShutdownTimeout bounds the final flush on shutdown.
	ExporterShutdownTimeout = 5 * time.Second

	// BackoffInitialInterval is the base retry backoff interval.
	BackoffInitialInterval = 1 * time.Second

	// BackoffMaxInterval caps the retry backoff interval.
	BackoffMaxInterval = 30 * time.Second

	// BackoffMaxAttempts bounds the number of retries per batch.
	BackoffMaxAttempts = 5

	// BackoffRandomizationFactor is the +/- jitter applied to each interval.
	BackoffRandomizationFactor = 0.2
)

// ─── Shutdown ──────────────────────────────────────────────────────
const (
	// ShutdownTimeout is the max time allowed for graceful shutdown.
	ShutdownTimeout = 10 * time.Second
)

// ─── Self-Observability ────────────────────────────────────────────
const (
	// StatsCollectInterval is how often self-observability metrics are sampled.
	StatsCollectInterval = 5 * time.Second

	PathMetrics = "/metrics"
	PathHealthz = "/healthz"
	PathReadyz  = "/readyz"
)

// ─── HTTP Server Timeouts ──────────────────────────────────────────
const (
	HTTPReadTimeout  = 5 * time.Second
	HTTPWriteTimeout = 10 * time.Second
	HTTPIdleTimeout  = 120 * time.Second
)

// ─── Metric Name Prefix (spec §6) ──────────────────────────────────
const (
	MetricPrefix = "honeybeepf_"

	MetricBlockIOEventsTotal  = MetricPrefix + "block_io_events_total"
	MetricBlockIOBytesTotal   = MetricPrefix + "block_io_bytes_total"
	MetricBlockIOLatencyNs    = MetricPrefix + "block_io_latency_ns"
	MetricNetworkLatencyNs    = MetricPrefix + "network_latency_ns"
	MetricGpuOpenEventsTotal  = MetricPrefix + "gpu_open_events_total"
	MetricActiveProbes        = MetricPrefix + "active_probes"
	MetricNcclCallDurationNs  = MetricPrefix + "nccl_call_duration_ns"
	MetricLlmTokensTotal      = MetricPrefix + "llm_tokens_total"
	MetricDroppedRecordsTotal = MetricPrefix + "dropped_records_total"
)

// ─── Self-Observability Pipeline Metric Names ──────────────────────
const (
	MetricPipelineOrphanReturns       = MetricPrefix + "orphan_returns_total"
	MetricPipelineEvictedPending      = MetricPrefix + "correlation_evicted_total"
	MetricPipelineCardinalityDropped  = MetricPrefix + "cardinality_dropped_total"
	MetricPipelineExportBatchesDropped = MetricPrefix + "export_batches_dropped_total"
	MetricPipelineHandlerErrors       = MetricPrefix + "handler_errors_total"
)

// ─── Label Names ────────────────────────────────────────────────────
const (
	LabelProbe     = "probe"
	LabelDevice    = "device"
	LabelOp        = "op"
	LabelPeerClass = "peer_class"
	LabelDatatype  = "datatype"
	LabelProvider  = "provider"
	LabelModel     = "model"
	LabelDirection = "direction"
	LabelKind      = "kind"
	LabelReason    = "reason"
)

// ─── Probe Names (spec §3/§6) ───────────────────────────────────────
const (
	ProbeBlockIO        = "block_io"
	ProbeNetworkLatency = "network_latency"
	ProbeGpuOpen        = "gpu_open"
	ProbeNccl           = "nccl"
	ProbeLlm            = "llm"
)

// ─── BPF Field Sizes ───────────────────────────────────────────────
const (
	CommSize       = 16
	DevicePathSize = 64
	HostSize       = 128
	PathSize       = 256
	ModelNameSize  = 64
)

// ─── Nanosecond Conversions ────────────────────────────────────────
const (
	NsPerSecond float64 = 1e9
)

// ─── Exporter Protocols (spec §6) ───────────────────────────────────
const (
	ExporterProtoOTLP = "otlp"
	ExporterProtoNATS = "nats"
)

// ─── NATS (alternate sink transport) ───────────────────────────────
const (
	NATSDefaultURL           = "nats://localhost:4222"
	NATSStream               = "HONEYBEEPF"
	NATSSubject              = "honeybeepf.metrics"
	NATSBatchSize            = 500
	NATSFlushInterval        = 100 * time.Millisecond
	NATSStreamMaxBytes int64 = 256 * 1024 * 1024 // 256 MB
)
