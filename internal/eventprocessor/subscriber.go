// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
)

// NATSSubscriberConfig configures the durable consumer of one lane.
type NATSSubscriberConfig struct {
	Conn         NATSConnConfig
	StreamName   string
	DurableName  string
	AckWait      time.Duration
	MaxDeliver   int
	CloseTimeout time.Duration
}

// DurableName derives the consumer name of a lane topic. Dots are not
// allowed in durable names.
func DurableName(prefix, laneTopic string) string {
	return prefix + "_" + strings.ReplaceAll(laneTopic, ".", "_")
}

// NewNATSSubscriber creates a durable JetStream subscriber bound to the
// existing stream. At most one message per lane is unacknowledged at a
// time, which keeps the lane in order through redeliveries.
func NewNATSSubscriber(cfg *NATSSubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg.StreamName == "" || cfg.DurableName == "" {
		return nil, fmt.Errorf("%w: stream and durable name required", ErrInvalidConfig)
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.MaxAckPending(1),
		natsgo.AckWait(cfg.AckWait),
		natsgo.DeliverAll(),
		natsgo.BindStream(cfg.StreamName),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.Conn.URL,
		QueueGroupPrefix: cfg.DurableName,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWait,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOptions(cfg.DurableName, cfg.Conn, logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    false,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	return sub, nil
}
