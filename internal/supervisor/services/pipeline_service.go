// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/mediatrack/notifier/internal/logging"
)

// Pipeline is the consuming side of the rating event flow.
type Pipeline interface {
	Run(ctx context.Context) error
	Close() error
}

// PipelineService supervises the rating pipeline. A watermill router
// cannot be run twice, so once Run returns the service asks suture not to
// restart it; the pipeline health check then reports it down.
type PipelineService struct {
	pipeline Pipeline
}

// NewPipelineService wraps pipeline.
func NewPipelineService(pipeline Pipeline) *PipelineService {
	return &PipelineService{pipeline: pipeline}
}

// Serve implements suture.Service.
func (p *PipelineService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.pipeline.Run(ctx)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		if closeErr := p.pipeline.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Closing rating pipeline")
		}
		err = <-errCh
	}

	if ctx.Err() == nil {
		logging.Error().Err(err).Msg("Rating pipeline stopped and will not be restarted")
		if err != nil {
			return fmt.Errorf("%w: %v", suture.ErrDoNotRestart, err)
		}
	}
	return suture.ErrDoNotRestart
}

// String implements fmt.Stringer.
func (p *PipelineService) String() string {
	return "rating-pipeline"
}
