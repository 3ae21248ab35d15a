// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

// Package eventprocessor carries rating events from the rating write path
// to follower notifications using Watermill over a durable, partitioned
// broker.
//
// # Flow
//
//	rating tx commit
//	       │ AfterCommit
//	       ▼
//	┌────────────────┐   ┌──────────────────────────────┐
//	│ EventPublisher │──▶│ Broker (NATS / Kafka / memory)│
//	└────────────────┘   │  ratings.rated.p0..pN-1       │
//	   (optional WAL)    │  ratings.recompute.p0..pN-1   │
//	                     │  ratings.dlq                  │
//	                     └──────────────┬───────────────┘
//	                                    │ one lane per partition
//	                 ┌──────────────────┼──────────────────┐
//	                 ▼                  ▼                  ▼
//	          FanoutHandler     AggregateHandler    DeadLetterHandler
//	          (notifications)   (media item stats)  (DLQ store, metrics)
//
// Every event of one rater hashes to the same partition, and each lane
// delivers its next message only after the previous one was acked, so one
// rater's events are handled in send order.
//
// # Failure handling
//
// Retrying handlers are wrapped, outermost first, in:
//
//	PoisonQueue(dead-letter topic) → categorize → Retry → Recoverer → handler
//
// A RetryableError (or any unclassified error) is retried with exponential
// backoff, RetryMaxRetries times after the first attempt. A PermanentError
// such as an undecodable payload skips the remaining retries. Either way
// the message is then published once to the dead-letter topic and acked,
// and the DeadLetterHandler records it without ever failing.
//
// Notifications are idempotent, so redelivery after a crash or a replay
// from the dead-letter store never produces a second notification.
//
// # Transports
//
//   - NATSBroker: JetStream stream with one durable consumer per lane and
//     MaxAckPending 1; an embedded nats-server can be started in-process.
//   - KafkaBroker: kafka-go writer keyed by rater id and one consumer-group
//     reader per topic that commits an offset only after the ack.
//   - MemoryBroker: watermill GoChannel for tests and single-process use.
package eventprocessor
