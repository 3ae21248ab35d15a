// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

/*
Package middleware provides the chi middleware shared by every API route.

Key Components:

  - RequestID: request and correlation ids, echoed in response headers and
    stored in the request context for logging.Ctx
  - PrometheusMetrics: request count and latency labelled by route pattern
  - AccessLog: one zerolog line per request, level chosen by status

Middleware Stack:

The API router installs them in this order, after chi's RealIP and Recoverer:

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)

RequestID must come first so the access log and any handler log lines carry
the ids.

Thread Safety:

All middleware is stateless apart from Prometheus collectors, which are safe
for concurrent use.
*/
package middleware
