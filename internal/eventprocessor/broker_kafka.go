// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/segmentio/kafka-go"

	"github.com/mediatrack/notifier/internal/config"
	"github.com/mediatrack/notifier/internal/logging"
)

// kafkaUUIDHeader carries the watermill message UUID across Kafka.
const kafkaUUIDHeader = "_watermill_message_uuid"

// KafkaBroker is the Kafka transport. Partitioning is native: the writer
// hashes the partition key, and a consumer-group reader keeps each
// partition in offset order.
type KafkaBroker struct {
	cfg       config.KafkaConfig
	parts     int
	replicas  int
	publisher *KafkaPublisher
	logger    watermill.LoggerAdapter
	closed    atomic.Bool
}

// NewKafkaBroker creates the topics and the publisher.
func NewKafkaBroker(ctx context.Context, broker *config.BrokerConfig, cfg *config.KafkaConfig, logger watermill.LoggerAdapter) (*KafkaBroker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: kafka brokers required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewWatermillLogger()
	}

	b := &KafkaBroker{
		cfg:      *cfg,
		parts:    max(broker.Partitions, 1),
		replicas: max(broker.Replicas, 1),
		logger:   logger,
	}

	topics := []kafka.TopicConfig{
		{Topic: broker.RatingTopic, NumPartitions: b.parts, ReplicationFactor: b.replicas},
		{Topic: broker.RecomputeTopic, NumPartitions: b.parts, ReplicationFactor: b.replicas},
		{Topic: broker.DeadLetterTopic, NumPartitions: 1, ReplicationFactor: b.replicas},
	}
	if err := ensureKafkaTopics(ctx, cfg.Brokers[0], topics...); err != nil {
		return nil, err
	}

	b.publisher = NewKafkaPublisher(cfg)
	return b, nil
}

// ensureKafkaTopics creates topics through the controller. Existing topics
// are left unchanged.
func ensureKafkaTopics(ctx context.Context, addr string, topics ...kafka.TopicConfig) error {
	conn, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find kafka controller: %w", err)
	}
	ctrl, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer ctrl.Close()

	if err := ctrl.CreateTopics(topics...); err != nil {
		return fmt.Errorf("create kafka topics: %w", err)
	}
	return nil
}

// Publisher implements Broker.
func (b *KafkaBroker) Publisher() message.Publisher {
	return b.publisher
}

// Route implements Broker. The partition is chosen by the writer from the
// message key.
func (b *KafkaBroker) Route(topic, _ string) string {
	return topic
}

// Lanes implements Broker. One consumer-group reader serves every partition
// of a topic.
func (b *KafkaBroker) Lanes(topic string, _ bool) ([]Lane, error) {
	if b.closed.Load() {
		return nil, ErrBrokerClosed
	}
	sub := NewKafkaSubscriber(&b.cfg, b.cfg.GroupID+"-"+topic, b.logger)
	return []Lane{{Topic: topic, Subscriber: sub}}, nil
}

// HealthCheck implements Broker.
func (b *KafkaBroker) HealthCheck(ctx context.Context) ComponentHealth {
	health := ComponentHealth{
		Name:      "broker",
		LastCheck: time.Now(),
		Details: map[string]interface{}{
			"transport":  config.TransportKafka,
			"partitions": b.parts,
			"brokers":    b.cfg.Brokers,
		},
	}
	if b.closed.Load() {
		health.Error = "broker is closed"
		return health
	}

	conn, err := kafka.DialContext(ctx, "tcp", b.cfg.Brokers[0])
	if err != nil {
		health.Error = err.Error()
		return health
	}
	defer conn.Close()
	if _, err := conn.Controller(); err != nil {
		health.Error = err.Error()
		return health
	}

	stats := b.publisher.writer.Stats()
	health.Healthy = true
	health.Message = "Kafka cluster reachable"
	health.Details["writes"] = stats.Writes
	health.Details["write_errors"] = stats.Errors
	return health
}

// Close implements Broker.
func (b *KafkaBroker) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.publisher.Close()
}

// KafkaPublisher writes watermill messages with the partition key as the
// Kafka message key.
type KafkaPublisher struct {
	writer *kafka.Writer
	closed atomic.Bool
}

// NewKafkaPublisher creates a publisher that waits for all in-sync replicas.
func NewKafkaPublisher(cfg *config.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.Hash{},
			BatchTimeout: cfg.BatchTimeout,
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// Publish implements message.Publisher.
func (p *KafkaPublisher) Publish(topic string, messages ...*message.Message) error {
	if p.closed.Load() {
		return ErrBrokerClosed
	}

	ctx := context.Background()
	kms := make([]kafka.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Context() != nil {
			ctx = msg.Context()
		}
		kms = append(kms, toKafkaMessage(topic, msg))
	}
	if err := p.writer.WriteMessages(ctx, kms...); err != nil {
		return fmt.Errorf("write kafka messages: %w", err)
	}
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}

func toKafkaMessage(topic string, msg *message.Message) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Metadata)+1)
	headers = append(headers, kafka.Header{Key: kafkaUUIDHeader, Value: []byte(msg.UUID)})
	for k, v := range msg.Metadata {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(msg.Metadata.Get(MetadataPartitionKey)),
		Value:   msg.Payload,
		Headers: headers,
	}
}

func fromKafkaMessage(km kafka.Message) *message.Message {
	uuid := ""
	md := make(message.Metadata, len(km.Headers))
	for _, h := range km.Headers {
		if h.Key == kafkaUUIDHeader {
			uuid = string(h.Value)
			continue
		}
		md.Set(h.Key, string(h.Value))
	}
	if uuid == "" {
		uuid = watermill.NewUUID()
	}
	msg := message.NewMessage(uuid, km.Value)
	msg.Metadata = md
	msg.Metadata.Set(MetadataPartition, strconv.Itoa(km.Partition))
	return msg
}

// KafkaSubscriber consumes a topic through a consumer group. A message is
// redelivered in place until it is acked, and only then is its offset
// committed.
type KafkaSubscriber struct {
	cfg     config.KafkaConfig
	groupID string
	logger  watermill.LoggerAdapter

	mu      sync.Mutex
	cancels []context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// NewKafkaSubscriber creates a subscriber in consumer group groupID.
func NewKafkaSubscriber(cfg *config.KafkaConfig, groupID string, logger watermill.LoggerAdapter) *KafkaSubscriber {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &KafkaSubscriber{cfg: *cfg, groupID: groupID, logger: logger}
}

// Subscribe implements message.Subscriber.
func (s *KafkaSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrBrokerClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancels = append(s.cancels, cancel)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     s.cfg.Brokers,
		GroupID:     s.groupID,
		Topic:       topic,
		MinBytes:    s.cfg.MinBytes,
		MaxBytes:    s.cfg.MaxBytes,
		MaxWait:     s.cfg.MaxWait,
		StartOffset: kafka.FirstOffset,
	})

	out := make(chan *message.Message)
	s.wg.Add(1)
	go s.consume(ctx, reader, out)
	return out, nil
}

func (s *KafkaSubscriber) consume(ctx context.Context, reader *kafka.Reader, out chan<- *message.Message) {
	defer s.wg.Done()
	defer close(out)
	defer func() {
		if err := reader.Close(); err != nil {
			s.logger.Error("Close kafka reader", err, nil)
		}
	}()

	fields := watermill.LogFields{"topic": reader.Config().Topic, "group": s.groupID}
	for {
		km, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("Kafka fetch failed", err, fields)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if !s.deliver(ctx, km, out) {
			return
		}
		if err := reader.CommitMessages(ctx, km); err != nil && ctx.Err() == nil {
			s.logger.Error("Kafka commit failed", err, fields)
		}
	}
}

// deliver sends km until it is acked. It returns false when ctx ends first.
func (s *KafkaSubscriber) deliver(ctx context.Context, km kafka.Message, out chan<- *message.Message) bool {
	for {
		msg := fromKafkaMessage(km)
		msgCtx, cancel := context.WithCancel(ctx)
		msg.SetContext(msgCtx)

		select {
		case out <- msg:
		case <-ctx.Done():
			cancel()
			return false
		}

		select {
		case <-msg.Acked():
			cancel()
			return true
		case <-msg.Nacked():
			cancel()
			s.logger.Debug("Kafka message nacked, redelivering", watermill.LogFields{"message_uuid": msg.UUID})
		case <-ctx.Done():
			cancel()
			return false
		}
	}
}

// Close stops every reader and waits for them to exit.
func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

var (
	_ message.Subscriber = (*KafkaSubscriber)(nil)
	_ message.Publisher  = (*KafkaPublisher)(nil)
)
