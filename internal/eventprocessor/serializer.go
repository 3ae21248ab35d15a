// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/mediatrack/notifier/internal/models"
	"github.com/mediatrack/notifier/internal/validation"
)

// Serializer handles rating event encoding/decoding for broker messages.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal validates an event and converts it to JSON bytes.
func (s *Serializer) Marshal(event *models.RatingEvent) ([]byte, error) {
	if event == nil {
		return nil, NewPermanentError("invalid event", fmt.Errorf("event is nil"))
	}
	event.Normalize()
	if verr := validation.ValidateStruct(event); verr != nil {
		return nil, NewPermanentError("invalid event", verr)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Unmarshal converts JSON bytes to a validated event. Undecodable or
// invalid payloads are poison: the error is permanent.
func (s *Serializer) Unmarshal(data []byte) (*models.RatingEvent, error) {
	var event models.RatingEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, NewPermanentError("malformed event payload", err)
	}
	event.Normalize()
	if verr := validation.ValidateStruct(&event); verr != nil {
		return nil, NewPermanentError("invalid event", verr)
	}
	return &event, nil
}
