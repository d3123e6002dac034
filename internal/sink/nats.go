package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/honeybeepf/internal/aggregator"
	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
)

// wirePoint is the JSON wire format published to NATS — flat, compact,
// adapted from the teacher's wireEvent shape in export/nats.go.
type wirePoint struct {
	Node      string             `json:"node"`
	Timestamp int64              `json:"ts"`
	Name      string             `json:"name"`
	Kind      int                `json:"kind"`
	Labels    map[string]string  `json:"l,omitempty"`
	Value     float64            `json:"v"`
	Count     uint64             `json:"c,omitempty"`
	Buckets   map[float64]uint64 `json:"b,omitempty"`
}

// NATSSink is the alternate metric-sink transport (spec §4.6's
// exporter.protocol="nats"), adapted from the teacher's JetStream batch
// publisher in internal/export/nats.go.
type NATSSink struct {
	url     string
	logger  *zap.Logger

	nc *nats.Conn
	js jetstream.JetStream
}

// NewNATSSink creates a sink publishing to the given NATS server URL.
func NewNATSSink(url string, logger *zap.Logger) *NATSSink {
	if url == "" {
		url = constants.NATSDefaultURL
	}
	return &NATSSink{url: url, logger: logger}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Start(ctx context.Context) error {
	nc, err := nats.Connect(s.url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if s.logger != nil {
				s.logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if s.logger != nil {
				s.logger.Info("nats reconnected")
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	s.nc = nc

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("creating jetstream context: %w", err)
	}
	s.js = js

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      constants.NATSStream,
		Subjects:  []string{constants.NATSSubject},
		Retention: jetstream.WorkQueuePolicy,
		MaxBytes:  constants.NATSStreamMaxBytes,
		Discard:   jetstream.DiscardOld,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("creating jetstream stream: %w", err)
	}
	return nil
}

func (s *NATSSink) Record(ctx context.Context, node string, ts time.Time, points []aggregator.Point) error {
	for _, p := range points {
		w := wirePoint{
			Node:      node,
			Timestamp: ts.UnixMilli(),
			Name:      p.Name,
			Kind:      int(p.Kind),
			Labels:    p.Labels,
			Value:     p.Value,
			Count:     p.Count,
			Buckets:   p.Buckets,
		}
		data, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("marshaling point %s: %w", p.Name, err)
		}
		if _, err := s.js.Publish(ctx, constants.NATSSubject, data); err != nil {
			return fmt.Errorf("publishing point %s: %w", p.Name, err)
		}
	}
	return nil
}

func (s *NATSSink) Stop(_ context.Context) error {
	if s.nc != nil {
		return s.nc.Drain()
	}
	return nil
}
