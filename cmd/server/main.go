// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/mediatrack/notifier/internal/config"
	"github.com/mediatrack/notifier/internal/logging"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error().Err(err).Msg("Notifier exited with error")
		os.Exit(1)
	}
	logging.Info().Msg("Notifier stopped")
}

// run builds every component, serves until ctx is canceled and then tears
// down in reverse order.
func run(ctx context.Context, cfg *config.Config) error {
	logging.Info().
		Str("transport", cfg.Broker.Transport).
		Int("partitions", cfg.Broker.Partitions).
		Str("db_path", cfg.Database.Path).
		Bool("wal", cfg.WAL.Enabled).
		Bool("redis", cfg.Redis.Enabled).
		Msg("Starting rating notifier")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	tree, err := a.supervisorTree()
	if err != nil {
		return err
	}

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
