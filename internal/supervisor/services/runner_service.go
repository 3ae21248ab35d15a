// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/mediatrack/notifier/internal/logging"
)

// RunFunc is a loop that blocks until ctx is done, such as the WAL retry
// loop, the WAL compactor, dead-letter cleanup or the websocket hub.
type RunFunc func(ctx context.Context) error

// RunnerService supervises a RunFunc. A loop that exits while ctx is still
// live is reported as a failure so suture restarts it.
type RunnerService struct {
	name string
	run  RunFunc
}

// NewRunnerService creates a named service around run.
func NewRunnerService(name string, run RunFunc) *RunnerService {
	return &RunnerService{name: name, run: run}
}

// Serve implements suture.Service.
func (r *RunnerService) Serve(ctx context.Context) error {
	err := r.run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil || errors.Is(err, context.Canceled) {
		err = errors.New("exited unexpectedly")
	}
	logging.Warn().Err(err).Str("service", r.name).Msg("Supervised loop stopped")
	return fmt.Errorf("%s: %w", r.name, err)
}

// String implements fmt.Stringer.
func (r *RunnerService) String() string {
	return r.name
}
