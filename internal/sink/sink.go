// Package sink defines the Sink interface the exporter adapter hands
// aggregated metric points to (spec §4.6, §9's opaque external interface),
// plus the two concrete transports wired from the reference corpus.
package sink

import (
	"context"
	"time"

	"github.com/sureshkrishnan-v/honeybeepf/internal/aggregator"
)

// Sink is the opaque external metrics transport. Submission errors are
// retried by the exporter adapter with backoff; a Sink implementation
// itself should not retry.
type Sink interface {
	// Name identifies the sink for logging.
	Name() string

	// Start establishes the connection/session. Called once before Record.
	Start(ctx context.Context) error

	// Record ships one batch of points, tagged with the node and the
	// observation timestamp.
	Record(ctx context.Context, node string, ts time.Time, points []aggregator.Point) error

	// Stop tears down the connection, best-effort flushing anything
	// buffered internally.
	Stop(ctx context.Context) error
}
