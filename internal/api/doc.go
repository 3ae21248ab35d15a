// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

/*
Package api is the notifier's HTTP surface, routed with chi under /api/v1.

# Endpoints

Health:
  - GET /health: every registered component, 503 when a critical one fails
  - GET /health/live: process liveness only
  - GET /health/ready: database, broker and pipeline readiness

Ratings and follows:
  - PUT /users/{userID}/ratings/{mediaItemID}: set or clear (rating null) a rating
  - POST /users/{userID}/follows: follow, threshold defaults to FANOUT_DEFAULT_THRESHOLD
  - PUT /users/{userID}/follows/{followingID}: change the threshold
  - DELETE /users/{userID}/follows/{followingID}: unfollow

Notifications (limit is clamped to NOTIFICATIONS_FETCH_LIMIT):
  - GET /users/{userID}/notifications
  - GET /users/{userID}/notifications/unread
  - GET /users/{userID}/notifications/unread/count
  - PUT /users/{userID}/notifications/{id}/read
  - PUT /users/{userID}/notifications/read
  - GET /users/{userID}/notifications/ws: live feed over websocket

Dead letters:
  - GET /dlq, GET /dlq/{id}, DELETE /dlq/{id}, POST /dlq/{id}/replay

Prometheus metrics are served at /metrics outside the versioned prefix.

# Responses

Every JSON body is a models.APIResponse envelope with status "success" or
"error". Error codes are the models.ErrCode* constants; validation failures
carry per-field details from the validation package.

# Middleware

Global: request and correlation ids, real IP, panic recovery, CORS
(go-chi/cors), access logging. The /api/v1 group adds per-IP rate limiting
(go-chi/httprate), gzip and per-route Prometheus metrics. The websocket
route skips compression.
*/
package api
