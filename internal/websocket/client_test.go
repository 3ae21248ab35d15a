// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mediatrack/notifier/internal/models"
)

// dialFeed starts a server that attaches every connection to userID.
func dialFeed(t *testing.T, hub *Hub, userID int64) *websocket.Conn {
	t.Helper()

	upgrader := Upgrader(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.ServeUser(upgrader, w, r, userID); err != nil {
			t.Logf("ServeUser: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestClient_ReceivesPushedNotification(t *testing.T) {
	t.Parallel()
	hub := startHub(t)

	conn := dialFeed(t, hub, 7)
	waitFor(t, func() bool { return hub.HasClients(7) })

	hub.PushNotification(&models.Notification{ID: 3, UserID: 7, Message: "carol rated 'Heat' with 8 stars", Rating: 8})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string              `json:"type"`
		Data models.Notification `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != MessageTypeNotification {
		t.Errorf("Type = %q, want %q", msg.Type, MessageTypeNotification)
	}
	if msg.Data.ID != 3 || msg.Data.Message != "carol rated 'Heat' with 8 stars" {
		t.Errorf("Data = %+v", msg.Data)
	}
}

func TestClient_AnswersPing(t *testing.T) {
	t.Parallel()
	hub := startHub(t)

	conn := dialFeed(t, hub, 8)
	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != MessageTypePong {
		t.Errorf("Type = %q, want %q", msg.Type, MessageTypePong)
	}
}

func TestClient_CloseUnregisters(t *testing.T) {
	t.Parallel()
	hub := startHub(t)

	conn := dialFeed(t, hub, 9)
	waitFor(t, func() bool { return hub.HasClients(9) })

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	waitFor(t, func() bool { return !hub.HasClients(9) })
}

func TestUpgrader_CheckOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no list", nil, "https://evil.example", true},
		{"wildcard", []string{"*"}, "https://evil.example", true},
		{"listed", []string{"https://app.example"}, "https://app.example", true},
		{"not listed", []string{"https://app.example"}, "https://evil.example", false},
		{"no origin header", []string{"https://app.example"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := Upgrader(tt.allowed).CheckOrigin(req); got != tt.want {
				t.Errorf("CheckOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
