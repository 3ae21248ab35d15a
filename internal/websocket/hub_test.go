// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package websocket

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/mediatrack/notifier/internal/logging"
	"github.com/mediatrack/notifier/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// startHub runs a hub until the test ends.
func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("hub did not stop")
		}
	})
	return hub
}

// fakeClient registers a connection-less client for userID.
func fakeClient(t *testing.T, hub *Hub, userID int64) *Client {
	t.Helper()
	c := &Client{id: clientIDCounter.Add(1), userID: userID, hub: hub, send: make(chan Message, sendBuffer)}
	hub.Register <- c
	waitFor(t, func() bool { return hub.HasClients(userID) })
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Errorf("unexpected message %+v for user %d", msg, c.userID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_PushReachesOnlyRecipient(t *testing.T) {
	t.Parallel()
	hub := startHub(t)

	alice1 := fakeClient(t, hub, 1)
	alice2 := fakeClient(t, hub, 1)
	bob := fakeClient(t, hub, 2)

	n := &models.Notification{ID: 10, UserID: 1, Message: "bob rated 'Dune' with 9 stars", MediaItemID: 5, Rating: 9, RatedByUserID: 2}
	hub.PushNotification(n)

	for _, c := range []*Client{alice1, alice2} {
		msg := receive(t, c)
		if msg.Type != MessageTypeNotification {
			t.Errorf("Type = %q, want %q", msg.Type, MessageTypeNotification)
		}
		if got, ok := msg.Data.(*models.Notification); !ok || got.ID != 10 {
			t.Errorf("Data = %#v, want notification 10", msg.Data)
		}
	}
	assertNoMessage(t, bob)
}

func TestHub_PushWithoutClientsIsDropped(t *testing.T) {
	t.Parallel()
	hub := startHub(t)

	hub.PushNotification(&models.Notification{ID: 1, UserID: 99})
	hub.PushNotification(nil)

	if got := len(hub.outbox); got != 0 {
		t.Errorf("outbox length = %d, want 0", got)
	}
}

func TestHub_Unregister(t *testing.T) {
	t.Parallel()
	hub := startHub(t)

	c := fakeClient(t, hub, 3)
	if hub.GetClientCount() != 1 {
		t.Fatalf("GetClientCount() = %d, want 1", hub.GetClientCount())
	}

	hub.Unregister <- c
	waitFor(t, func() bool { return !hub.HasClients(3) })

	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after unregister")
	}
	// A second unregister must not close the channel again.
	hub.Unregister <- c
	if hub.GetClientCount() != 0 {
		t.Errorf("GetClientCount() = %d, want 0", hub.GetClientCount())
	}
}

func TestHub_SlowClientDisconnected(t *testing.T) {
	t.Parallel()
	hub := startHub(t)

	slow := fakeClient(t, hub, 4)
	for i := 0; i < sendBuffer+1; i++ {
		hub.PushNotification(&models.Notification{ID: int64(i), UserID: 4})
	}
	waitFor(t, func() bool { return !hub.HasClients(4) })

	drained := 0
	for range slow.send {
		drained++
	}
	if drained != sendBuffer {
		t.Errorf("buffered messages = %d, want %d", drained, sendBuffer)
	}
}

func TestHub_ServeStopsAndClosesClients(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	c := fakeClient(t, hub, 5)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if _, ok := <-c.send; ok {
		t.Error("client channel should be closed on shutdown")
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("GetClientCount() = %d, want 0", hub.GetClientCount())
	}
}

func TestGetShutdownReason(t *testing.T) {
	t.Parallel()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithTimeout(context.Background(), -time.Second)
	defer cancel2()

	tests := []struct {
		name string
		ctx  context.Context
		want ShutdownReason
	}{
		{"canceled", canceled, ShutdownReasonContextCanceled},
		{"deadline", expired, ShutdownReasonContextDeadline},
	}
	for _, tt := range tests {
		if got := getShutdownReason(tt.ctx); got != tt.want {
			t.Errorf("%s: getShutdownReason() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestMarshalMessage(t *testing.T) {
	t.Parallel()

	data, err := MarshalMessage(Message{Type: MessageTypePong})
	if err != nil {
		t.Fatalf("MarshalMessage() error = %v", err)
	}
	if want := `{"type":"pong","data":null}`; string(data) != want {
		t.Errorf("MarshalMessage() = %s, want %s", data, want)
	}
}
