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

	"github.com/mediatrack/notifier/internal/logging"
)

// PipelineDeps are the stores the consumers write to.
type PipelineDeps struct {
	Followers FollowerSource
	Notifier  NotificationCreator

	// Stats enables the aggregate recompute consumer when set.
	Stats StatsRecomputer

	// DLQStore persists dead letters when set.
	DLQStore DLQStore
}

// Pipeline is the consuming half of the rating event flow: one fanout
// handler per partition lane, the optional recompute handlers and the
// terminal dead-letter handler, all on one router.
type Pipeline struct {
	broker     Broker
	topics     Topics
	router     *Router
	deadLetter *DeadLetterHandler

	fanoutLanes    int
	aggregateLanes int
	started        atomic.Bool
}

// NewPipeline registers every handler on a new router. Nothing is consumed
// until Run or Start.
func NewPipeline(broker Broker, topics Topics, cfg *RouterConfig, deps PipelineDeps, logger watermill.LoggerAdapter) (*Pipeline, error) {
	if broker == nil {
		return nil, errors.New("broker cannot be nil")
	}
	if topics.Rated == "" || topics.DeadLetter == "" {
		return nil, fmt.Errorf("%w: rated and dead-letter topics are required", ErrInvalidConfig)
	}

	fanout, err := NewFanoutHandler(deps.Followers, deps.Notifier)
	if err != nil {
		return nil, err
	}

	router, err := NewRouter(cfg, logger)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		broker:     broker,
		topics:     topics,
		router:     router,
		deadLetter: NewDeadLetterHandler(deps.DLQStore),
	}

	p.fanoutLanes, err = p.addRetryingLanes(FanoutHandlerName, topics.Rated, fanout.Handle)
	if err != nil {
		return nil, err
	}

	if deps.Stats != nil && topics.Recompute != "" {
		aggregate, err := NewAggregateHandler(deps.Stats)
		if err != nil {
			return nil, err
		}
		p.aggregateLanes, err = p.addRetryingLanes(AggregateHandlerName, topics.Recompute, aggregate.Handle)
		if err != nil {
			return nil, err
		}
	}

	dlqLanes, err := broker.Lanes(topics.DeadLetter, false)
	if err != nil {
		return nil, fmt.Errorf("dead-letter lanes: %w", err)
	}
	for _, lane := range dlqLanes {
		if err := router.AddTerminalHandler(laneHandlerName(DeadLetterHandlerName, lane), lane.Topic, lane.Subscriber, p.deadLetter.Handle); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *Pipeline) addRetryingLanes(prefix, topic string, handle message.NoPublishHandlerFunc) (int, error) {
	lanes, err := p.broker.Lanes(topic, true)
	if err != nil {
		return 0, fmt.Errorf("%s lanes: %w", prefix, err)
	}
	for _, lane := range lanes {
		err := p.router.AddRetryingHandler(
			laneHandlerName(prefix, lane),
			lane.Topic,
			lane.Subscriber,
			p.broker.Publisher(),
			p.topics.DeadLetter,
			handle,
		)
		if err != nil {
			return 0, err
		}
	}
	return len(lanes), nil
}

// laneHandlerName is prefix for a single-lane topic and prefix-pN per
// partition otherwise.
func laneHandlerName(prefix string, lane Lane) string {
	if lane.Name == "" {
		return prefix
	}
	return prefix + "-" + lane.Name
}

// Run consumes until ctx is done or Close is called. A pipeline runs once.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return errors.New("pipeline already started")
	}
	logging.Info().
		Int("fanout_lanes", p.fanoutLanes).
		Int("aggregate_lanes", p.aggregateLanes).
		Msg("Rating pipeline starting")
	return p.router.Run(ctx)
}

// Start runs the pipeline in the background and returns once every handler
// is subscribed.
func (p *Pipeline) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run(ctx)
	}()

	select {
	case <-p.router.Running():
		return nil
	case err := <-errCh:
		if err == nil {
			err = errors.New("pipeline stopped before it was running")
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return errors.New("timed out waiting for pipeline to start")
	}
}

// Running returns a channel that is closed once the pipeline consumes.
func (p *Pipeline) Running() <-chan struct{} {
	return p.router.Running()
}

// Close stops consuming, waiting for in-flight messages up to the router
// close timeout. The broker is left open.
func (p *Pipeline) Close() error {
	return p.router.Close()
}

// DeadLetters returns the terminal dead-letter handler.
func (p *Pipeline) DeadLetters() *DeadLetterHandler {
	return p.deadLetter
}

// HealthCheck implements HealthCheckable.
func (p *Pipeline) HealthCheck(ctx context.Context) ComponentHealth {
	health := p.router.HealthCheck(ctx)
	health.Name = "pipeline"
	if health.Details == nil {
		health.Details = make(map[string]interface{})
	}
	health.Details["fanout_lanes"] = p.fanoutLanes
	health.Details["aggregate_lanes"] = p.aggregateLanes
	health.Details["dead_lettered"] = p.deadLetter.Received()
	return health
}
