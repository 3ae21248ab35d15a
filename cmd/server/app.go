// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediatrack/notifier/internal/api"
	"github.com/mediatrack/notifier/internal/config"
	"github.com/mediatrack/notifier/internal/database"
	"github.com/mediatrack/notifier/internal/eventprocessor"
	"github.com/mediatrack/notifier/internal/logging"
	"github.com/mediatrack/notifier/internal/notifications"
	"github.com/mediatrack/notifier/internal/ratings"
	"github.com/mediatrack/notifier/internal/supervisor"
	"github.com/mediatrack/notifier/internal/supervisor/services"
	"github.com/mediatrack/notifier/internal/wal"
	ws "github.com/mediatrack/notifier/internal/websocket"
)

// app owns every long-lived component. Close releases them in reverse
// construction order.
type app struct {
	cfg *config.Config

	db        *database.DB
	broker    eventprocessor.Broker
	outbox    *walComponents
	redis     *redis.Client
	publisher *eventprocessor.EventPublisher
	sender    *eventprocessor.AsyncPublisher

	ratings       *ratings.Service
	notifications *notifications.Service
	hub           *ws.Hub
	pipeline      *eventprocessor.Pipeline
	dlq           *eventprocessor.DLQManager
	health        *eventprocessor.HealthChecker

	handler http.Handler
	closers []func() error
}

// newApp wires the rating path, the consumer pipeline and the HTTP API.
// Nothing consumes or serves until the supervisor tree runs.
func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.db, err = database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.onClose(a.db.Close)
	logging.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	dlqStore := eventprocessor.NewDuckDBDLQStore(a.db.Conn())
	if err = dlqStore.CreateTable(ctx); err != nil {
		return nil, fmt.Errorf("create dead-letter table: %w", err)
	}

	watermillLogger := logging.NewWatermillLogger()
	a.broker, err = eventprocessor.NewBroker(ctx, cfg, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	a.onClose(a.broker.Close)
	topics := eventprocessor.TopicsFromConfig(&cfg.Broker)

	a.outbox, err = openWAL(&cfg.WAL)
	if err != nil {
		return nil, err
	}
	var outbox *wal.BadgerWAL
	if a.outbox != nil {
		outbox = a.outbox.wal
		a.onClose(a.outbox.wal.Close)
	}

	a.publisher, err = eventprocessor.NewEventPublisher(a.broker, topics,
		eventprocessor.DefaultCircuitBreakerConfig("rating-publisher"), outbox)
	if err != nil {
		return nil, fmt.Errorf("create publisher: %w", err)
	}
	if a.outbox != nil {
		a.outbox.start(ctx, a.publisher)
	}

	// Registered after the broker, so queued events drain before it closes.
	a.sender, err = eventprocessor.NewAsyncPublisher(a.publisher, eventprocessor.AsyncPublisherConfig{
		Lanes:        cfg.Broker.Partitions,
		QueueSize:    cfg.Broker.PublishQueueSize,
		DrainTimeout: cfg.Broker.PublishDrainTimeout,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create async publisher: %w", err)
	}
	a.onClose(a.sender.Close)

	a.ratings, err = ratings.NewService(a.db, a.sender)
	if err != nil {
		return nil, err
	}

	a.hub = ws.NewHub()
	counter := a.unreadCounter(ctx)
	a.notifications, err = notifications.NewService(a.db, cfg.Notifications.FetchLimit,
		notifications.WithCounter(counter),
		notifications.WithPusher(a.hub),
	)
	if err != nil {
		return nil, err
	}

	routerCfg := eventprocessor.RouterConfigFrom(&cfg.Router)
	a.pipeline, err = eventprocessor.NewPipeline(a.broker, topics, &routerCfg, eventprocessor.PipelineDeps{
		Followers: a.db,
		Notifier:  a.notifications,
		Stats:     a.db,
		DLQStore:  dlqStore,
	}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	a.dlq, err = eventprocessor.NewDLQManager(dlqStore, a.broker, topics, &cfg.DLQ)
	if err != nil {
		return nil, fmt.Errorf("create dead-letter manager: %w", err)
	}

	a.health = a.healthChecker()

	handler, err := api.NewHandler(api.HandlerDeps{
		Ratings:          a.ratings,
		Follows:          a.db,
		Notifications:    a.notifications,
		Feed:             a.hub,
		DLQ:              a.dlq,
		Health:           a.health,
		DefaultThreshold: cfg.Fanout.DefaultThreshold,
		AllowedOrigins:   cfg.Security.CORSOrigins,
	})
	if err != nil {
		return nil, err
	}
	a.handler = api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(&cfg.Security)))

	return a, nil
}

// unreadCounter connects Redis when enabled. An unreachable Redis is not
// fatal: counts fall back to DuckDB.
func (a *app) unreadCounter(ctx context.Context) notifications.UnreadCounter {
	if !a.cfg.Redis.Enabled {
		return notifications.NopCounter{}
	}
	a.redis = notifications.NewRedisClient(&a.cfg.Redis)
	a.onClose(a.redis.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		logging.Warn().Err(err).Str("addr", a.cfg.Redis.Addr).Msg("Redis unreachable, unread counts will be served from the database")
	} else {
		logging.Info().Str("addr", a.cfg.Redis.Addr).Msg("Unread counter cache connected")
	}
	return notifications.NewRedisCounter(a.redis, a.cfg.Redis.KeyPrefix, a.cfg.Redis.CounterTTL)
}

// healthChecker registers the database, broker, pipeline and publisher as
// critical and Redis as optional.
func (a *app) healthChecker() *eventprocessor.HealthChecker {
	h := eventprocessor.NewHealthChecker(eventprocessor.DefaultHealthConfig())
	h.RegisterComponent("database", eventprocessor.PingCheck(a.db.Ping))
	h.RegisterComponent("broker", a.broker)
	h.RegisterComponent("pipeline", a.pipeline)
	h.RegisterOptional("publisher", a.publisher)
	if a.redis != nil {
		h.RegisterOptional("redis", eventprocessor.PingCheck(func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}))
	}
	return h
}

// supervisorTree places every loop in its layer.
func (a *app) supervisorTree() (*supervisor.SupervisorTree, error) {
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create supervisor tree: %w", err)
	}

	if a.outbox != nil {
		tree.AddDataService(services.NewRunnerService("wal-retry-loop", a.outbox.retryLoop.Run))
		tree.AddDataService(services.NewRunnerService("wal-compactor", a.outbox.compactor.Run))
	}
	tree.AddDataService(services.NewRunnerService("dlq-cleanup", a.dlq.RunCleanup))

	tree.AddMessagingService(services.NewRunnerService("websocket-hub", a.hub.Serve))
	tree.AddMessagingService(services.NewPipelineService(a.pipeline))

	addr := net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port))
	server := &http.Server{
		Addr:              addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: it would cut websocket feeds.
	}
	tree.AddAPIService(services.NewHTTPServerService(server, addr, a.cfg.Server.ShutdownTimeout))

	return tree, nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases components in reverse order. Errors are logged.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Warn().Err(err).Msg("Error during shutdown")
		}
	}
	a.closers = nil
}
