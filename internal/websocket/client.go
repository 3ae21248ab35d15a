// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package websocket

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mediatrack/notifier/internal/logging"
	"github.com/mediatrack/notifier/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64

	registerTimeout = 5 * time.Second
)

var errHubNotRunning = errors.New("websocket hub is not running")

// clientIDCounter gives clients a stable delivery order.
var clientIDCounter atomic.Uint64

// Client is one websocket connection of one user.
type Client struct {
	id     uint64
	userID int64
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
}

// NewClient creates a client for userID.
func NewClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan Message, sendBuffer),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// UserID returns the user the connection belongs to.
func (c *Client) UserID() int64 {
	return c.userID
}

// readPump only answers application pings; the feed is server to client.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
				logging.Warn().Err(err).Int64("user_id", c.userID).Msg("unexpected websocket close")
			}
			return
		}
		if msg.Type == MessageTypePing {
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Upgrader builds the connection upgrader. An empty or "*" origin list
// accepts any origin.
func Upgrader(allowedOrigins []string) *websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// ServeUser upgrades the request and attaches the connection to userID's
// feed. The upgrader has already written the HTTP error when it fails.
func (h *Hub) ServeUser(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, userID int64) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.WSErrors.WithLabelValues("upgrade").Inc()
		return err
	}
	client := NewClient(h, conn, userID)
	select {
	case h.Register <- client:
	case <-time.After(registerTimeout):
		_ = conn.Close()
		return errHubNotRunning
	}
	client.Start()
	return nil
}
