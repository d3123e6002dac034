package constants

// ─── Histogram Buckets ─────────────────────────────────────────────
// Pre-defined bucket sets for the metric aggregator's histograms.
// Changing these affects all histograms using them.

// NetworkLatencyNsBuckets covers 10us to 1s of network round-trip latency,
// expressed in nanoseconds to match honeybeepf_network_latency_ns (spec §6).
var NetworkLatencyNsBuckets = []float64{
	1e4, 2.5e4, 5e4, 1e5, 2.5e5, 5e5,
	1e6, 2.5e6, 5e6, 1e7, 2.5e7, 5e7,
	1e8, 2.5e8, 5e8, 1e9,
}

// BlockIOLatencyNsBuckets covers 100us to 10s of block I/O completion latency.
var BlockIOLatencyNsBuckets = []float64{
	1e5, 2.5e5, 5e5, 1e6, 2.5e6, 5e6,
	1e7, 2.5e7, 5e7, 1e8, 2.5e8, 5e8,
	1e9, 2.5e9, 5e9, 1e10,
}

// NcclCallDurationNsBuckets covers 10us to 60s of collective call duration.
var NcclCallDurationNsBuckets = []float64{
	1e4, 1e5, 1e6, 1e7, 1e8,
	2.5e8, 5e8, 1e9, 2.5e9, 5e9,
	1e10, 3e10, 6e10,
}
