// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/mediatrack/notifier/internal/cache"
	"github.com/mediatrack/notifier/internal/config"
	"github.com/mediatrack/notifier/internal/logging"
)

// RouterConfig holds configuration for the Watermill Router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for handlers to finish when closing.
	CloseTimeout time.Duration

	// Retry configuration. RetryMaxRetries counts redeliveries after the
	// first attempt, so a message is handled at most RetryMaxRetries+1 times.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// Throttle configuration (messages per second, 0 = disabled)
	ThrottlePerSecond int64

	// Deduplication by event id. Off by default: a message whose dead-letter
	// publish failed is redelivered and must not be dropped.
	DeduplicationEnabled bool
	DeduplicationTTL     time.Duration
}

// DefaultRouterConfig returns production defaults for the Router.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 200 * time.Millisecond,
		RetryMaxInterval:     5 * time.Second,
		RetryMultiplier:      2.0,
		DeduplicationTTL:     5 * time.Minute,
	}
}

// RouterConfigFrom maps the router section of the service configuration.
func RouterConfigFrom(cfg *config.RouterConfig) RouterConfig {
	return RouterConfig{
		CloseTimeout:         cfg.CloseTimeout,
		RetryMaxRetries:      cfg.RetryMaxRetries,
		RetryInitialInterval: cfg.RetryInitialInterval,
		RetryMaxInterval:     cfg.RetryMaxInterval,
		RetryMultiplier:      cfg.RetryMultiplier,
		ThrottlePerSecond:    cfg.ThrottlePerSecond,
		DeduplicationEnabled: cfg.DeduplicationEnabled,
		DeduplicationTTL:     cfg.DeduplicationTTL,
	}
}

// Router wraps the Watermill Router. Handlers that may fail are registered
// with AddRetryingHandler, terminal handlers with AddTerminalHandler.
type Router struct {
	router    *message.Router
	config    RouterConfig
	logger    watermill.LoggerAdapter
	running   atomic.Bool
	mu        sync.RWMutex
	handlers  map[string]*message.Handler
	dedupRepo *InMemoryDeduplicator
	retries   atomic.Int64
}

// InMemoryDeduplicator implements middleware.ExpiringKeyRepository on a
// bounded SeenSet.
type InMemoryDeduplicator struct {
	seen *cache.SeenSet
}

// NewInMemoryDeduplicator remembers up to cache.DefaultSeenCapacity event
// ids for ttl.
func NewInMemoryDeduplicator(ttl time.Duration) *InMemoryDeduplicator {
	return &InMemoryDeduplicator{
		seen: cache.NewSeenSet("event_dedup", cache.DefaultSeenCapacity, ttl),
	}
}

// IsDuplicate checks if a key exists and hasn't expired.
func (d *InMemoryDeduplicator) IsDuplicate(_ context.Context, key string) (bool, error) {
	return d.seen.IsDuplicate(key), nil
}

// eventIDKey keys deduplication on the event id, falling back to the
// message UUID for messages that carry no event id.
func eventIDKey(msg *message.Message) (string, error) {
	if id := msg.Metadata.Get(MetadataEventID); id != "" {
		return id, nil
	}
	return msg.UUID, nil
}

// NewRouter creates a new Watermill Router. Router-level middleware is
// limited to throttling and optional deduplication; retry and
// dead-lettering are per handler.
func NewRouter(cfg *RouterConfig, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = logging.NewWatermillLogger()
	}

	if cfg == nil {
		defaultCfg := DefaultRouterConfig()
		cfg = &defaultCfg
	}
	if cfg.RetryMaxRetries < 0 {
		return nil, fmt.Errorf("%w: retry max retries must not be negative", ErrInvalidConfig)
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	r := &Router{
		router:   wmRouter,
		config:   *cfg,
		logger:   logger,
		handlers: make(map[string]*message.Handler),
	}

	wmRouter.AddMiddleware(messageContext)

	if cfg.ThrottlePerSecond > 0 {
		throttle := middleware.NewThrottle(cfg.ThrottlePerSecond, time.Second)
		wmRouter.AddMiddleware(throttle.Middleware)
	}

	if cfg.DeduplicationEnabled {
		r.dedupRepo = NewInMemoryDeduplicator(cfg.DeduplicationTTL)
		dedup := middleware.Deduplicator{
			KeyFactory: eventIDKey,
			Repository: r.dedupRepo,
		}
		wmRouter.AddMiddleware(dedup.Middleware)
	}

	return r, nil
}

// messageContext gives each delivery a logger carrying the correlation id
// of the originating request and the message identity.
func messageContext(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		ctx := msg.Context()
		if id := msg.Metadata.Get(MetadataCorrelationID); id != "" {
			ctx = logging.ContextWithCorrelationID(ctx, id)
		} else {
			ctx = logging.ContextWithNewCorrelationID(ctx)
		}
		logger := logging.LoggerFromContext(ctx).With().
			Str("message_uuid", msg.UUID).
			Str("partition", msg.Metadata.Get(MetadataPartition)).
			Str("handler", message.HandlerNameFromCtx(ctx)).
			Logger()
		msg.SetContext(logging.ContextWithLogger(ctx, logger))
		return h(msg)
	}
}

// AddRetryingHandler registers a consumer whose failures are retried with
// exponential backoff and then published once to deadLetterTopic.
//
// Middleware, outermost first:
//
//	PoisonQueue(deadLetterTopic) -> categorize -> Retry(ShouldRetry: !permanent) -> Recoverer -> handler
//
// A permanent error skips the remaining retries. Panics are recovered into
// errors and retried like any other failure.
func (r *Router) AddRetryingHandler(
	name string,
	topic string,
	subscriber message.Subscriber,
	deadLetter message.Publisher,
	deadLetterTopic string,
	handler message.NoPublishHandlerFunc,
) error {
	if subscriber == nil {
		return ErrNilSubscriber
	}
	if deadLetter == nil {
		return ErrNilPublisher
	}

	poisonQueue, err := middleware.PoisonQueue(newDeadLetterPublisher(deadLetter), deadLetterTopic)
	if err != nil {
		return fmt.Errorf("create poison queue middleware: %w", err)
	}

	retry := middleware.Retry{
		MaxRetries:      r.config.RetryMaxRetries,
		InitialInterval: r.config.RetryInitialInterval,
		MaxInterval:     r.config.RetryMaxInterval,
		Multiplier:      r.config.RetryMultiplier,
		ShouldRetry: func(p middleware.RetryParams) bool {
			return !IsPermanentError(p.Err)
		},
		OnRetryHook: func(retryNum int, delay time.Duration) {
			r.retries.Add(1)
			logging.Debug().
				Str("handler", name).
				Str("state", string(StateRetry)).
				Int("attempt", retryNum+1).
				Dur("delay", delay).
				Msg("Retrying message")
		},
		Logger: r.logger,
	}

	h, err := r.addConsumerHandler(name, topic, subscriber, handler)
	if err != nil {
		return err
	}
	h.AddMiddleware(poisonQueue, categorizeFailure, retry.Middleware, middleware.Recoverer)
	return nil
}

// categorizeFailure records the category of the final error on the message
// so the dead-letter entry carries it.
func categorizeFailure(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		produced, err := h(msg)
		if err != nil {
			msg.Metadata.Set(MetadataErrorCategory, CategoryOf(err).String())
		}
		return produced, err
	}
}

// AddTerminalHandler registers a consumer that is never retried, such as
// the dead-letter handler.
func (r *Router) AddTerminalHandler(
	name string,
	topic string,
	subscriber message.Subscriber,
	handler message.NoPublishHandlerFunc,
) error {
	if subscriber == nil {
		return ErrNilSubscriber
	}
	h, err := r.addConsumerHandler(name, topic, subscriber, handler)
	if err != nil {
		return err
	}
	h.AddMiddleware(middleware.Recoverer)
	return nil
}

func (r *Router) addConsumerHandler(
	name string,
	topic string,
	subscriber message.Subscriber,
	handler message.NoPublishHandlerFunc,
) (*message.Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return nil, fmt.Errorf("handler %q already registered", name)
	}
	h := r.router.AddConsumerHandler(name, topic, subscriber, handler)
	r.handlers[name] = h
	return h, nil
}

// AddHandlerMiddleware adds middleware to a specific handler.
// Handler-level middleware runs after router-level middleware.
func (r *Router) AddHandlerMiddleware(handlerName string, m ...message.HandlerMiddleware) error {
	r.mu.RLock()
	h, exists := r.handlers[handlerName]
	r.mu.RUnlock()
	if !exists {
		return fmt.Errorf("handler %q not found", handlerName)
	}
	h.AddMiddleware(m...)
	return nil
}

// Run starts the router and blocks until context cancellation or Close().
func (r *Router) Run(ctx context.Context) error {
	r.running.Store(true)
	defer r.running.Store(false)
	return r.router.Run(ctx)
}

// RunAsync starts the router in a goroutine and returns a channel that is
// closed once every handler is subscribed.
func (r *Router) RunAsync(ctx context.Context) <-chan struct{} {
	go func() {
		if err := r.Run(ctx); err != nil {
			r.logger.Error("Router error", err, nil)
		}
	}()
	return r.router.Running()
}

// Running returns a channel that closes when the router is running.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close gracefully stops the router.
// Waits for in-flight messages to complete up to CloseTimeout.
func (r *Router) Close() error {
	return r.router.Close()
}

// IsRunning returns whether the router is currently processing messages.
func (r *Router) IsRunning() bool {
	return r.running.Load() && !r.router.IsClosed()
}

// HandlerCount returns the number of registered handlers.
func (r *Router) HandlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// HealthCheck implements HealthCheckable.
func (r *Router) HealthCheck(_ context.Context) ComponentHealth {
	health := ComponentHealth{
		Name:      "router",
		LastCheck: time.Now(),
		Details:   make(map[string]interface{}),
	}

	if r.IsRunning() {
		health.Healthy = true
		health.Message = "Router is running"
		health.Details["handlers"] = r.HandlerCount()
		health.Details["retries"] = r.retries.Load()
	} else {
		health.Healthy = false
		health.Error = "Router is not running"
	}

	return health
}
