// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mediatrack/notifier/internal/config"
	"github.com/mediatrack/notifier/internal/logging"
)

// NATSBroker is the JetStream transport. Partitioned topics map to one
// subject per lane, all captured by a single file-backed stream.
type NATSBroker struct {
	server    *EmbeddedServer
	conn      *natsgo.Conn
	streams   *StreamInitializer
	publisher *NATSPublisher
	connCfg   NATSConnConfig
	natsCfg   config.NATSConfig
	closeWait time.Duration
	parts     int
	logger    watermill.LoggerAdapter
	closed    atomic.Bool
}

// NewNATSBroker connects to NATS, starting an embedded server when
// configured, and makes sure the stream exists.
func NewNATSBroker(ctx context.Context, broker *config.BrokerConfig, nats *config.NATSConfig, logger watermill.LoggerAdapter) (*NATSBroker, error) {
	if logger == nil {
		logger = logging.NewWatermillLogger()
	}

	b := &NATSBroker{
		natsCfg:   *nats,
		closeWait: 10 * time.Second,
		parts:     broker.Partitions,
		logger:    logger,
	}
	if b.parts < 1 {
		b.parts = 1
	}

	url := nats.URL
	if nats.EmbeddedServer {
		serverCfg := ServerConfigFrom(nats)
		srv, err := NewEmbeddedServer(&serverCfg)
		if err != nil {
			return nil, err
		}
		b.server = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}
	b.connCfg = NATSConnConfig{
		URL:           url,
		MaxReconnects: nats.MaxReconnects,
		ReconnectWait: nats.ReconnectWait,
	}

	if err := b.init(ctx, broker); err != nil {
		b.shutdownServer()
		return nil, err
	}
	return b, nil
}

func (b *NATSBroker) init(ctx context.Context, broker *config.BrokerConfig) error {
	conn, err := natsgo.Connect(b.connCfg.URL, natsOptions("rating-admin", b.connCfg, b.logger)...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create JetStream context: %w", err)
	}

	streamCfg := StreamConfigFrom(broker, &b.natsCfg)
	streams, err := NewStreamInitializer(js, &streamCfg)
	if err != nil {
		conn.Close()
		return err
	}
	if _, err := streams.EnsureStream(ctx); err != nil {
		conn.Close()
		return err
	}

	pub, err := NewNATSPublisher(b.connCfg, b.logger)
	if err != nil {
		conn.Close()
		return err
	}

	b.conn = conn
	b.streams = streams
	b.publisher = pub
	return nil
}

// Publisher implements Broker.
func (b *NATSBroker) Publisher() message.Publisher {
	return b.publisher
}

// Route implements Broker.
func (b *NATSBroker) Route(topic, key string) string {
	return PartitionTopic(topic, Partition(key, b.parts))
}

// Lanes implements Broker. Each lane gets its own durable consumer.
func (b *NATSBroker) Lanes(topic string, partitioned bool) ([]Lane, error) {
	if b.closed.Load() {
		return nil, ErrBrokerClosed
	}
	return staticLanes(topic, partitioned, b.parts, func(laneTopic string) (message.Subscriber, error) {
		return NewNATSSubscriber(&NATSSubscriberConfig{
			Conn:         b.connCfg,
			StreamName:   b.natsCfg.StreamName,
			DurableName:  DurableName(b.natsCfg.DurablePrefix, laneTopic),
			AckWait:      b.natsCfg.AckWait,
			MaxDeliver:   b.natsCfg.MaxDeliver,
			CloseTimeout: b.closeWait,
		}, b.logger)
	})
}

// HealthCheck implements Broker.
func (b *NATSBroker) HealthCheck(ctx context.Context) ComponentHealth {
	health := ComponentHealth{
		Name:      "broker",
		LastCheck: time.Now(),
		Details: map[string]interface{}{
			"transport":  config.TransportNATS,
			"partitions": b.parts,
			"embedded":   b.server != nil,
		},
	}

	if b.closed.Load() {
		health.Error = "broker is closed"
		return health
	}
	if !b.conn.IsConnected() {
		health.Error = "NATS connection is " + b.conn.Status().String()
		return health
	}

	info, err := b.streams.GetStreamInfo(ctx)
	if err != nil {
		health.Error = err.Error()
		return health
	}
	health.Healthy = true
	health.Message = "JetStream stream available"
	health.Details["stream"] = info.Config.Name
	health.Details["messages"] = info.State.Msgs
	health.Details["bytes"] = info.State.Bytes
	health.Details["consumers"] = info.State.Consumers
	return health
}

// Close implements Broker. Subscribers are closed by the router that owns
// them.
func (b *NATSBroker) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	b.conn.Close()
	if err := b.shutdownServer(); err != nil {
		errs = append(errs, fmt.Errorf("shutdown embedded server: %w", err))
	}
	return errors.Join(errs...)
}

func (b *NATSBroker) shutdownServer() error {
	if b.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.closeWait)
	defer cancel()
	return b.server.Shutdown(ctx)
}
