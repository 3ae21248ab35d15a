// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/mediatrack/notifier/internal/config"
)

// Lane is one ordered stream of messages. A lane delivers its next message
// only after the previous one was acked, so a handler bound to a lane sees
// one rater's events in send order.
type Lane struct {
	// Name distinguishes handlers of the same topic, e.g. "p3".
	Name       string
	Topic      string
	Partition  int
	Subscriber message.Subscriber
}

// Broker is the durable, partitioned, at-least-once transport.
type Broker interface {
	// Publisher sends messages to any topic returned by Route.
	Publisher() message.Publisher

	// Route returns the topic a message keyed by key is written to.
	Route(topic, key string) string

	// Lanes returns the subscribers that together consume topic. A
	// partitioned topic yields one lane per partition.
	Lanes(topic string, partitioned bool) ([]Lane, error)

	HealthCheck(ctx context.Context) ComponentHealth

	Close() error
}

// NewBroker builds the transport selected by cfg.Broker.Transport.
func NewBroker(ctx context.Context, cfg *config.Config, logger watermill.LoggerAdapter) (Broker, error) {
	switch cfg.Broker.Transport {
	case config.TransportNATS:
		return NewNATSBroker(ctx, &cfg.Broker, &cfg.NATS, logger)
	case config.TransportKafka:
		return NewKafkaBroker(ctx, &cfg.Broker, &cfg.Kafka, logger)
	case config.TransportMemory:
		return NewMemoryBroker(cfg.Broker.Partitions, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Broker.Transport)
	}
}

// MemoryBroker is a single-process broker on a watermill GoChannel. Publish
// blocks until the subscriber acks, which keeps every partition topic in
// send order.
type MemoryBroker struct {
	pubsub     *gochannel.GoChannel
	partitions int
	closed     atomic.Bool
}

// NewMemoryBroker creates an in-process broker with n partitions.
func NewMemoryBroker(partitions int, logger watermill.LoggerAdapter) *MemoryBroker {
	if partitions < 1 {
		partitions = 1
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &MemoryBroker{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			BlockPublishUntilSubscriberAck: true,
		}, logger),
		partitions: partitions,
	}
}

// Publisher implements Broker.
func (b *MemoryBroker) Publisher() message.Publisher {
	return b.pubsub
}

// Route implements Broker.
func (b *MemoryBroker) Route(topic, key string) string {
	return PartitionTopic(topic, Partition(key, b.partitions))
}

// Lanes implements Broker.
func (b *MemoryBroker) Lanes(topic string, partitioned bool) ([]Lane, error) {
	return staticLanes(topic, partitioned, b.partitions, func(string) (message.Subscriber, error) {
		return b.pubsub, nil
	})
}

// HealthCheck implements Broker.
func (b *MemoryBroker) HealthCheck(_ context.Context) ComponentHealth {
	if b.closed.Load() {
		return ComponentHealth{Name: "broker", Error: "broker is closed", LastCheck: time.Now()}
	}
	return ComponentHealth{
		Name:      "broker",
		Healthy:   true,
		Message:   "in-memory broker",
		LastCheck: time.Now(),
		Details:   map[string]interface{}{"transport": config.TransportMemory, "partitions": b.partitions},
	}
}

// Close implements Broker.
func (b *MemoryBroker) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.pubsub.Close()
}

// staticLanes builds the lane set for transports with one subscriber per
// partition topic. newSub receives the topic of the lane.
func staticLanes(topic string, partitioned bool, partitions int, newSub func(laneTopic string) (message.Subscriber, error)) ([]Lane, error) {
	if !partitioned {
		sub, err := newSub(topic)
		if err != nil {
			return nil, err
		}
		return []Lane{{Topic: topic, Subscriber: sub}}, nil
	}

	lanes := make([]Lane, 0, partitions)
	for p := 0; p < partitions; p++ {
		laneTopic := PartitionTopic(topic, p)
		sub, err := newSub(laneTopic)
		if err != nil {
			return nil, fmt.Errorf("subscriber for partition %d: %w", p, err)
		}
		lanes = append(lanes, Lane{
			Name:       fmt.Sprintf("p%d", p),
			Topic:      laneTopic,
			Partition:  p,
			Subscriber: sub,
		})
	}
	return lanes, nil
}
