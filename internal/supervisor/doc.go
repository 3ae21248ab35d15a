// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

/*
Package supervisor runs the notifier's long-lived services under suture v4.

# Tree

	mediatrack-notifier
	├── data-layer
	│   ├── wal-retry-loop   (WAL enabled)
	│   ├── wal-compactor    (WAL enabled)
	│   └── dlq-cleanup
	├── messaging-layer
	│   ├── rating-pipeline
	│   └── websocket-hub
	└── api-layer
	    └── http-server

Each layer is its own supervisor, so repeated failures of one service back
off only that layer. Supervisor events are logged through sutureslog.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewPipelineService(pipeline))
	tree.AddAPIService(services.NewHTTPServerService(srv, srv.Addr, cfg.Server.ShutdownTimeout))
	return tree.Serve(ctx)

See the services subpackage for the wrappers.
*/
package supervisor
