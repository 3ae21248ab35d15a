// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultRedisImage is the Redis image used for counter tests
	DefaultRedisImage = "redis:7-alpine"

	// DefaultRedisPort is the Redis listener port inside the container
	DefaultRedisPort = "6379"
)

// RedisContainer represents a running Redis container for testing.
type RedisContainer struct {
	testcontainers.Container
	Addr string
}

// RedisOption configures the Redis container.
type RedisOption func(*redisConfig)

type redisConfig struct {
	image        string
	startTimeout time.Duration
}

// WithRedisImage sets a custom Redis Docker image.
func WithRedisImage(image string) RedisOption {
	return func(c *redisConfig) {
		c.image = image
	}
}

// WithRedisStartTimeout sets the timeout for waiting for Redis to start.
func WithRedisStartTimeout(timeout time.Duration) RedisOption {
	return func(c *redisConfig) {
		c.startTimeout = timeout
	}
}

// NewRedisContainer creates and starts a Redis container.
//
// Example:
//
//	rc, err := testinfra.NewRedisContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer testinfra.CleanupContainer(t, ctx, rc)
//	client := redis.NewClient(&redis.Options{Addr: rc.Addr})
func NewRedisContainer(ctx context.Context, opts ...RedisOption) (*RedisContainer, error) {
	cfg := &redisConfig{
		image:        DefaultRedisImage,
		startTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultRedisPort + "/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultRedisPort+"/tcp"),
			wait.ForLog("Ready to accept connections"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, DefaultRedisPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &RedisContainer{
		Container: container,
		Addr:      fmt.Sprintf("%s:%s", host, port.Port()),
	}, nil
}
