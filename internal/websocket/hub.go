// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/mediatrack/notifier/internal/logging"
	"github.com/mediatrack/notifier/internal/metrics"
	"github.com/mediatrack/notifier/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful path (SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during
	// shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeNotification = "notification"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// outbound is a message addressed to every connection of one user.
type outbound struct {
	userID int64
	msg    Message
}

// Hub tracks live connections per user and delivers notifications to the
// recipient's connections only. Delivery is best effort: a client whose
// buffer is full is disconnected and reads the missed rows over HTTP.
type Hub struct {
	clients    map[*Client]struct{}
	byUser     map[int64]map[*Client]struct{}
	outbox     chan outbound
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		byUser:     make(map[int64]map[*Client]struct{}),
		outbox:     make(chan outbound, 1024),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Serve runs the hub until ctx is canceled. It implements suture.Service.
//
// Lifecycle events are drained before outbound messages so a client that
// just registered receives what is pushed right after.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case out := <-h.outbox:
			h.deliver(out)
		}
	}
}

// String names the hub in supervisor logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	conns := h.byUser[client.userID]
	if conns == nil {
		conns = make(map[*Client]struct{})
		h.byUser[client.userID] = conns
	}
	conns[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Debug().Int64("user_id", client.userID).Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	removed := h.dropLocked(client)
	total := len(h.clients)
	h.mu.Unlock()

	if removed {
		logging.Debug().Int64("user_id", client.userID).Int("total_clients", total).Msg("websocket client disconnected")
	}
}

// dropLocked closes the client's send channel exactly once. h.mu must be
// held for writing.
func (h *Hub) dropLocked(client *Client) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	if conns := h.byUser[client.userID]; conns != nil {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.byUser, client.userID)
		}
	}
	close(client.send)
	metrics.WSConnections.Dec()
	return true
}

// deliver sends to the user's connections in id order.
func (h *Hub) deliver(out outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.byUser[out.userID]
	if len(conns) == 0 {
		return
	}
	clients := make([]*Client, 0, len(conns))
	for c := range conns {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		select {
		case client.send <- out.msg:
			metrics.WSMessagesSent.Inc()
		default:
			metrics.WSErrors.WithLabelValues("slow_client").Inc()
			logging.Warn().Int64("user_id", client.userID).Uint64("client_id", client.id).
				Msg("websocket client too slow, disconnecting")
			h.dropLocked(client)
		}
	}
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.dropLocked(client)
	}
}

// PushNotification queues n for the recipient's live connections. It never
// blocks; when the hub is saturated the push is dropped and the client
// catches up through the notification list.
func (h *Hub) PushNotification(n *models.Notification) {
	if n == nil || !h.HasClients(n.UserID) {
		return
	}
	select {
	case h.outbox <- outbound{userID: n.UserID, msg: Message{Type: MessageTypeNotification, Data: n}}:
	default:
		metrics.WSErrors.WithLabelValues("hub_full").Inc()
		logging.Warn().Int64("user_id", n.UserID).Int64("notification_id", n.ID).
			Msg("websocket hub queue full, dropping live notification")
	}
}

// HasClients reports whether userID has at least one live connection.
func (h *Hub) HasClients(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
