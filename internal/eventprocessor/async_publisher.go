// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mediatrack/notifier/internal/logging"
	"github.com/mediatrack/notifier/internal/models"
)

// ErrPublisherClosed is returned by AsyncPublisher.Publish after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// EventSender performs one blocking send. *EventPublisher implements it.
type EventSender interface {
	Publish(ctx context.Context, event *models.RatingEvent) error
}

// SendCallback observes the outcome of every send made by an AsyncPublisher.
type SendCallback func(ctx context.Context, event *models.RatingEvent, err error)

// AsyncPublisherConfig sizes an AsyncPublisher.
type AsyncPublisherConfig struct {
	// Lanes should match the broker partition count so a lane never
	// carries two partitions' worth of head-of-line blocking.
	Lanes int

	// QueueSize bounds each lane. Publish blocks while its lane is full.
	QueueSize int

	// DrainTimeout bounds Close. Sends still running when it expires are
	// cancelled.
	DrainTimeout time.Duration
}

type queuedEvent struct {
	ctx   context.Context
	event *models.RatingEvent
}

// AsyncPublisher moves broker sends off the caller's goroutine. Events are
// hashed onto lanes by partition key and each lane sends one event at a
// time, so one rater's events reach the broker in the order Publish saw
// them.
type AsyncPublisher struct {
	sender   EventSender
	onResult SendCallback
	lanes    []chan queuedEvent
	drain    time.Duration

	mu     sync.RWMutex
	closed bool

	stopCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewAsyncPublisher starts one goroutine per lane. A nil onResult logs
// failed sends.
func NewAsyncPublisher(sender EventSender, cfg AsyncPublisherConfig, onResult SendCallback) (*AsyncPublisher, error) {
	if sender == nil {
		return nil, ErrNilPublisher
	}
	if cfg.Lanes < 1 || cfg.QueueSize < 1 {
		return nil, fmt.Errorf("%w: lanes and queue size must be positive", ErrInvalidConfig)
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	if onResult == nil {
		onResult = LogSendResult
	}

	stopCtx, stop := context.WithCancel(context.Background())
	p := &AsyncPublisher{
		sender:   sender,
		onResult: onResult,
		lanes:    make([]chan queuedEvent, cfg.Lanes),
		drain:    cfg.DrainTimeout,
		stopCtx:  stopCtx,
		stop:     stop,
	}
	for i := range p.lanes {
		p.lanes[i] = make(chan queuedEvent, cfg.QueueSize)
		p.wg.Add(1)
		go p.run(p.lanes[i])
	}
	return p, nil
}

// Publish queues event and returns. The send outlives ctx's cancellation
// but keeps its values for logging.
func (p *AsyncPublisher) Publish(ctx context.Context, event *models.RatingEvent) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidConfig)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	lane := p.lanes[Partition(event.PartitionKey(), len(p.lanes))]
	select {
	case lane <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AsyncPublisher) run(lane <-chan queuedEvent) {
	defer p.wg.Done()
	for q := range lane {
		ctx, cancel := context.WithCancel(q.ctx)
		stopSend := context.AfterFunc(p.stopCtx, cancel)
		err := p.sender.Publish(ctx, q.event)
		stopSend()
		cancel()
		p.onResult(q.ctx, q.event, err)
	}
}

// Pending is the number of queued events not yet handed to the sender.
func (p *AsyncPublisher) Pending() int {
	n := 0
	for _, lane := range p.lanes {
		n += len(lane)
	}
	return n
}

// Close stops accepting events and waits up to the drain timeout for the
// queued ones to be sent.
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for _, lane := range p.lanes {
		close(lane)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(p.drain)
	defer timer.Stop()
	select {
	case <-done:
		p.stop()
		return nil
	case <-timer.C:
		p.stop()
		return fmt.Errorf("async publisher: %d events still queued after %s", p.Pending(), p.drain)
	}
}

// LogSendResult is the default SendCallback.
func LogSendResult(ctx context.Context, event *models.RatingEvent, err error) {
	if err == nil {
		logging.Ctx(ctx).Debug().
			Str("event_id", event.EventID).
			Str("kind", string(event.Kind)).
			Msg("rating event published")
		return
	}
	logging.Ctx(ctx).Error().Err(err).
		Str("event_id", event.EventID).
		Str("kind", string(event.Kind)).
		Int64("user_id", event.UserID).
		Int64("media_item_id", event.MediaItemID).
		Msg("rating committed but event publish failed")
}
