// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

/*
Package websocket pushes newly created notifications to the recipient's open
browser connections.

Key Components:

  - Hub: tracks connections per user id and routes each notification to its
    recipient only; runs as a suture service (Serve)
  - Client: one gorilla/websocket connection with a read and a write pump
  - Message: the JSON frame, {"type": "notification", "data": {...}}

Delivery:

The feed is best effort. The database row is written before the push, so a
client that misses a frame (slow consumer, reconnect, hub queue full) reads
it from GET /api/v1/users/{userID}/notifications. A client whose send buffer
fills is disconnected rather than allowed to stall other recipients.

Each client has two goroutines:
  - readPump: answers application pings and detects the close
  - writePump: writes frames and sends protocol pings every pingPeriod

Usage:

	hub := websocket.NewHub()
	supervisor.Add(hub)
	notifications.NewService(store, fetchLimit, notifications.WithPusher(hub))

	upgrader := websocket.Upgrader(cfg.Security.CORSOrigins)
	r.Get("/users/{userID}/notifications/ws", func(w http.ResponseWriter, r *http.Request) {
	    _ = hub.ServeUser(upgrader, w, r, userID)
	})
*/
package websocket
