// Package probe defines the Module interface that every HoneybeePF eBPF
// probe implements. This is the core extension point — each module owns
// its BPF program lifecycle and reports decoded records to the
// demultiplexer via Dependencies (spec §4.2).
package probe

import (
	"context"

	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/honeybeepf/internal/aggregator"
	"github.com/sureshkrishnan-v/honeybeepf/internal/config"
	"github.com/sureshkrishnan-v/honeybeepf/internal/demux"
	"github.com/sureshkrishnan-v/honeybeepf/internal/resolve"
)

// Module defines the lifecycle contract for a pluggable eBPF probe.
//
// Each module is responsible for:
//   - Loading its BPF program into the kernel
//   - Attaching hooks (kprobes, kretprobes, uprobes, tracepoints)
//   - Decoding ring buffer records
//   - Recording observations into the metric aggregator
//
// Lifecycle: Init(ctx, deps) → Start(ctx) → Stop(ctx)
type Module interface {
	// Name returns a unique identifier for this probe.
	// Must match the config key (e.g., "block_io", "nccl").
	Name() string

	// Init loads BPF programs, attaches hooks, and prepares ring readers.
	// Dependencies are injected here — the module stores them for later use.
	// An attach failure here is recoverable: the supervisor disables this
	// probe and continues with the rest (spec §4.2).
	Init(ctx context.Context, deps Dependencies) error

	// Start is called on each successfully attached probe once the
	// supervisor has tried to attach every enabled probe.
	// Record draining happens centrally in the shared Demux this module
	// registered its ring with during Init; Start simply blocks until ctx
	// is cancelled, so the supervisor can treat every module uniformly.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the module.
	// The ctx has a deadline — the module must finish within it.
	// Releases all kernel resources (BPF objects, links, ring buffers).
	Stop(ctx context.Context) error
}

// Dependencies provides all shared resources a probe module needs.
// Injected during Init() — no global state, no constructor injection.
type Dependencies struct {
	// Logger for structured logging, already .Named() for this probe.
	Logger *zap.Logger

	// Config for this specific probe.
	Config *config.ProbeConfig

	// Aggregator records the probe's metric observations.
	Aggregator *aggregator.Aggregator

	// Resolver locates uprobe targets (shared libraries, binaries) on the host.
	Resolver *resolve.LibraryResolver

	// Demux is the shared record demultiplexer. Modules register their
	// ring(s) and decode/aggregate handler(s) with it during Init.
	Demux *demux.Demux

	// NodeName identifies this host for metric labels.
	NodeName string
}
