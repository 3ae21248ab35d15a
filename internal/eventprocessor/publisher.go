// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
)

// NATSConnConfig holds the connection settings shared by publisher and
// subscribers.
type NATSConnConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// natsOptions returns connection options with reconnection handling.
func natsOptions(name string, cfg NATSConnConfig, logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name(name),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, watermill.LogFields{"client": name})
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"client": name,
				"url":    nc.ConnectedUrl(),
			})
		}),
	}
}

// NATSPublisher publishes to JetStream. Every message carries a Nats-Msg-Id
// so the stream drops a republished event inside the duplicate window.
type NATSPublisher struct {
	publisher message.Publisher
	mu        sync.RWMutex
	closed    bool
}

// NewNATSPublisher creates a JetStream publisher. The stream must already
// exist.
func NewNATSPublisher(cfg NATSConnConfig, logger watermill.LoggerAdapter) (*NATSPublisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOptions("rating-publisher", cfg, logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &NATSPublisher{publisher: pub}, nil
}

// Publish implements message.Publisher.
func (p *NATSPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrBrokerClosed
	}

	for _, msg := range messages {
		if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
			msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
		}
	}
	return p.publisher.Publish(topic, messages...)
}

// Close shuts down the publisher. Closing twice is a no-op.
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
