// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer runs a NATS JetStream server inside the process for
// single-node deployments and tests.
type EmbeddedServer struct {
	server    *server.Server
	config    ServerConfig
	clientURL string
}

// NewEmbeddedServer creates and starts an embedded NATS server.
// Returns an error if the server fails to start within 30 seconds.
func NewEmbeddedServer(cfg *ServerConfig) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName:         "rating-events",
		Host:               cfg.Host,
		Port:               cfg.Port,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.JetStreamMaxMem,
		JetStreamMaxStore:  cfg.JetStreamMaxStore,
		NoLog:              true,
		NoSigs:             true,
		MaxPayload:         1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	return &EmbeddedServer{
		server:    ns,
		config:    *cfg,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server and waits for it unless ctx is already done.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.server.WaitForShutdown()
		return nil
	}
}

// IsRunning returns server health status.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// JetStreamEnabled returns whether JetStream is enabled.
func (s *EmbeddedServer) JetStreamEnabled() bool {
	return s.server.JetStreamEnabled()
}
