// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package main

import (
	"context"
	"fmt"

	"github.com/mediatrack/notifier/internal/config"
	"github.com/mediatrack/notifier/internal/logging"
	"github.com/mediatrack/notifier/internal/wal"
)

// walComponents is the publish outbox: the BadgerDB log, the loop that
// republishes unconfirmed entries and the compactor.
type walComponents struct {
	wal       *wal.BadgerWAL
	retryLoop *wal.RetryLoop
	compactor *wal.Compactor
}

// openWAL returns nil when the outbox is disabled. Without it an event
// whose publish fails after commit is only logged.
func openWAL(cfg *config.WALConfig) (*walComponents, error) {
	if !cfg.Enabled {
		logging.Warn().Msg("WAL disabled (WAL_ENABLED=false), rating events are lost if the broker is down at commit time")
		return nil, nil
	}

	walCfg := wal.ConfigFrom(cfg)
	if err := walCfg.Validate(); err != nil {
		return nil, fmt.Errorf("wal config: %w", err)
	}

	w, err := wal.Open(&walCfg)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}
	return &walComponents{wal: w}, nil
}

// start replays entries left pending by the previous run, then prepares the
// background loops. Recovery is best effort; the retry loop picks up
// whatever it could not send.
func (c *walComponents) start(ctx context.Context, publisher wal.Publisher) {
	result, err := c.wal.RecoverPending(ctx, publisher)
	switch {
	case err != nil:
		logging.Warn().Err(err).Msg("WAL recovery failed")
	case result.TotalPending > 0:
		logging.Info().
			Int("total", result.TotalPending).
			Int("recovered", result.Recovered).
			Int("failed", result.Failed).
			Int("expired", result.Expired).
			Dur("duration", result.Duration).
			Msg("WAL recovery complete")
	}

	c.retryLoop = wal.NewRetryLoop(c.wal, publisher)
	c.compactor = wal.NewCompactor(c.wal)
}
