// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

/*
Package services adapts notifier components to suture's Serve(ctx) model.

# Available Services

HTTPServerService wraps *http.Server. Cancellation calls Shutdown with a
fresh deadline; http.ErrServerClosed is not treated as a failure.

RunnerService wraps any blocking Run(ctx) error loop:

	tree.AddDataService(services.NewRunnerService("wal-retry-loop", retryLoop.Run))
	tree.AddDataService(services.NewRunnerService("wal-compactor", compactor.Run))
	tree.AddDataService(services.NewRunnerService("dlq-cleanup", dlq.RunCleanup))
	tree.AddMessagingService(services.NewRunnerService("websocket-hub", hub.Serve))

A loop that returns while its context is still live is a failure and is
restarted with suture's backoff.

PipelineService wraps the rating pipeline. The underlying watermill router
runs at most once, so the service always returns suture.ErrDoNotRestart and
the /health/ready probe reports the pipeline down instead.
*/
package services
