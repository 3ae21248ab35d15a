// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"strconv"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cespare/xxhash/v2"
	natsgo "github.com/nats-io/nats.go"
)

// Message metadata keys set by the publisher.
const (
	MetadataEventID      = "event_id"
	MetadataKind         = "kind"
	MetadataPartitionKey = "partition_key"
	MetadataPartition    = "partition"
	MetadataUserID       = "user_id"
	MetadataMediaItemID  = "media_item_id"

	// MetadataCorrelationID carries the correlation id of the request that
	// produced the event.
	MetadataCorrelationID = "correlation_id"

	// MetadataReplayOf marks a message republished from the dead-letter store.
	MetadataReplayOf = "replay_of"

	// MetadataErrorCategory is set on a failed message before it is
	// dead-lettered.
	MetadataErrorCategory = "error_category"
)

// Partition maps a key onto one of n lanes. Every event of one rater is
// assigned the same lane.
func Partition(key string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(key) % uint64(n))
}

// PartitionTopic returns the topic of lane p of a partitioned topic.
func PartitionTopic(topic string, p int) string {
	return topic + ".p" + strconv.Itoa(p)
}

// partitionFromTopic recovers the lane number from a partition topic.
func partitionFromTopic(topic string) (int, bool) {
	i := strings.LastIndex(topic, ".p")
	if i < 0 {
		return 0, false
	}
	p, err := strconv.Atoi(topic[i+2:])
	if err != nil {
		return 0, false
	}
	return p, true
}

// MessageState is the lifecycle of one delivered message:
// RECEIVED, PROCESSING, then COMPLETED or RETRY(n) ... DEAD_LETTERED.
type MessageState string

const (
	StateReceived     MessageState = "received"
	StateProcessing   MessageState = "processing"
	StateCompleted    MessageState = "completed"
	StateRetry        MessageState = "retry"
	StateDeadLettered MessageState = "dead_lettered"
)

// newEventMessage wraps a payload in a watermill message whose UUID is the
// event id. JetStream uses the Msg-Id header to drop republished duplicates.
func newEventMessage(eventID string, payload []byte) *message.Message {
	msg := message.NewMessage(eventID, payload)
	msg.Metadata.Set(MetadataEventID, eventID)
	msg.Metadata.Set(natsgo.MsgIdHdr, eventID)
	return msg
}
