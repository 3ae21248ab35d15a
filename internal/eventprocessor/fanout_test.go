// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/mediatrack/notifier/internal/models"
)

const (
	raterA    = int64(1)
	followerB = int64(2)
	followerC = int64(3)
)

func newTestFanout(t *testing.T) (*FanoutHandler, *fakeFollowers, *fakeNotifier) {
	t.Helper()
	followers := newFakeFollowers()
	notifier := newFakeNotifier()
	h, err := NewFanoutHandler(followers, notifier)
	if err != nil {
		t.Fatalf("NewFanoutHandler() error = %v", err)
	}
	return h, followers, notifier
}

func ratedMessage(t *testing.T, event *models.RatingEvent) *message.Message {
	t.Helper()
	data, err := NewSerializer().Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return newEventMessage(event.EventID, data)
}

func TestNewFanoutHandler_NilDeps(t *testing.T) {
	t.Parallel()
	if _, err := NewFanoutHandler(nil, newFakeNotifier()); err == nil {
		t.Error("NewFanoutHandler(nil followers) should fail")
	}
	if _, err := NewFanoutHandler(newFakeFollowers(), nil); err == nil {
		t.Error("NewFanoutHandler(nil notifier) should fail")
	}
}

func TestFanout_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		threshold int
		rating    int
		want      int
	}{
		{threshold: 7, rating: 6, want: 0},
		{threshold: 7, rating: 7, want: 1},
		{threshold: 7, rating: 10, want: 1},
		{threshold: 0, rating: 0, want: 1},
		{threshold: 10, rating: 9, want: 0},
		{threshold: 10, rating: 10, want: 1},
	}
	for _, tt := range tests {
		h, followers, notifier := newTestFanout(t)
		followers.follow(followerB, raterA, tt.threshold)

		event := models.NewRatedEvent(raterA, "alice", 100, "Heat", tt.rating, time.Now())
		result, err := h.Process(context.Background(), event)
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if got := len(notifier.notifications()); got != tt.want {
			t.Errorf("threshold %d rating %d: notifications = %d, want %d", tt.threshold, tt.rating, got, tt.want)
		}
		if result.Created+result.Skipped != 1 {
			t.Errorf("threshold %d rating %d: result = %+v", tt.threshold, tt.rating, result)
		}
	}
}

func TestFanout_MixedFollowers(t *testing.T) {
	t.Parallel()
	h, followers, notifier := newTestFanout(t)
	followers.follow(followerB, raterA, 5)
	followers.follow(followerC, raterA, 9)
	followers.follow(4, raterA, models.DefaultRatingThreshold)

	event := models.NewRatedEvent(raterA, "alice", 100, "Heat", 8, time.Now())
	result, err := h.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if result.Followers != 3 || result.Created != 2 || result.Skipped != 1 {
		t.Errorf("Process() = %+v, want 3 followers, 2 created, 1 skipped", result)
	}
	for _, n := range notifier.notifications() {
		if n.RecipientID == followerC {
			t.Errorf("follower with threshold 9 notified for rating 8")
		}
	}
}

func TestFanout_NoSelfNotification(t *testing.T) {
	t.Parallel()
	h, followers, notifier := newTestFanout(t)
	followers.follow(raterA, raterA, 0)
	followers.follow(followerB, raterA, 0)

	event := models.NewRatedEvent(raterA, "alice", 100, "Heat", 10, time.Now())
	if _, err := h.Process(context.Background(), event); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	got := notifier.notifications()
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
	if got[0].RecipientID == raterA {
		t.Error("rater received a notification for their own rating")
	}
}

func TestFanout_NotificationContent(t *testing.T) {
	t.Parallel()
	h, followers, notifier := newTestFanout(t)
	followers.follow(followerB, raterA, 7)

	event := models.NewRatedEvent(raterA, "alice", 100, "The Godfather", 9, time.Now())
	if _, err := h.Process(context.Background(), event); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	got := notifier.notifications()[0]
	want := models.NewNotification{
		RecipientID:   followerB,
		Message:       "alice rated 'The Godfather' with 9 stars",
		MediaItemID:   100,
		Rating:        9,
		RatedByUserID: raterA,
	}
	if got != want {
		t.Errorf("notification = %+v, want %+v", got, want)
	}
}

// A 10 from A reaches B (threshold 9); a cleared rating reaches nobody.
func TestFanout_RatingAboveThresholdNotifies(t *testing.T) {
	t.Parallel()
	h, followers, notifier := newTestFanout(t)
	followers.follow(followerB, raterA, 9)

	if err := h.Handle(ratedMessage(t, models.NewRatedEvent(raterA, "alice", 100, "Inception", 10, time.Now()))); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	got := notifier.notifications()
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
	if !strings.Contains(got[0].Message, "10") || !strings.Contains(got[0].Message, "Inception") {
		t.Errorf("Message = %q, want rating and title", got[0].Message)
	}

	cleared := &models.RatingEvent{
		Kind:          models.EventKindRated,
		UserID:        raterA,
		Username:      "alice",
		MediaItemID:   101,
		MediaItemName: "Tenet",
		Timestamp:     time.Now(),
	}
	if err := h.Handle(ratedMessage(t, cleared)); err != nil {
		t.Fatalf("Handle(null rating) error = %v", err)
	}
	recompute := models.NewRecomputeEvent(raterA, "alice", 102, "Memento", time.Now())
	if err := h.Handle(ratedMessage(t, recompute)); err != nil {
		t.Fatalf("Handle(recompute) error = %v", err)
	}
	if got := len(notifier.notifications()); got != 1 {
		t.Errorf("notifications after null rating = %d, want 1", got)
	}
}

func TestFanout_RatingBelowThresholdSkipped(t *testing.T) {
	t.Parallel()
	h, followers, notifier := newTestFanout(t)
	followers.follow(followerC, raterA, 9)

	if err := h.Handle(ratedMessage(t, models.NewRatedEvent(raterA, "alice", 100, "Inception", 8, time.Now()))); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := len(notifier.notifications()); got != 0 {
		t.Errorf("notifications = %d, want 0", got)
	}
}

func TestFanout_RedeliveryCreatesOneNotification(t *testing.T) {
	t.Parallel()
	h, followers, notifier := newTestFanout(t)
	followers.follow(followerB, raterA, 7)
	followers.follow(followerC, raterA, 7)

	event := models.NewRatedEvent(raterA, "alice", 100, "Inception", 9, time.Now())
	msg := ratedMessage(t, event)

	for i := 0; i < 2; i++ {
		if err := h.Handle(msg.Copy()); err != nil {
			t.Fatalf("Handle() delivery %d error = %v", i+1, err)
		}
	}

	if got := len(notifier.notifications()); got != 2 {
		t.Errorf("notifications = %d, want one per follower (2)", got)
	}

	result, err := h.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Created != 0 || result.Duplicates != 2 {
		t.Errorf("third delivery = %+v, want 0 created, 2 duplicates", result)
	}
}

func TestFanout_Errors(t *testing.T) {
	t.Parallel()

	t.Run("poison payload is permanent", func(t *testing.T) {
		h, _, notifier := newTestFanout(t)
		err := h.Handle(message.NewMessage("m", []byte("{not json")))
		if !IsPermanentError(err) {
			t.Errorf("Handle() error = %v, want permanent", err)
		}
		if notifier.callCount() != 0 {
			t.Error("notifier called for poison message")
		}
	})

	t.Run("follower lookup failure is retryable", func(t *testing.T) {
		h, followers, _ := newTestFanout(t)
		followers.err = errStoreDown
		err := h.Handle(ratedMessage(t, models.NewRatedEvent(raterA, "alice", 1, "Heat", 9, time.Now())))
		if !IsRetryableError(err) || !errors.Is(err, errStoreDown) {
			t.Errorf("Handle() error = %v, want retryable wrapping errStoreDown", err)
		}
	})

	t.Run("store failure is retryable", func(t *testing.T) {
		h, followers, notifier := newTestFanout(t)
		followers.follow(followerB, raterA, 0)
		notifier.always = true
		err := h.Handle(ratedMessage(t, models.NewRatedEvent(raterA, "alice", 1, "Heat", 9, time.Now())))
		if !IsRetryableError(err) {
			t.Errorf("Handle() error = %v, want retryable", err)
		}
		if CategoryOf(err) != ErrorCategoryConnection {
			t.Errorf("CategoryOf() = %v, want connection", CategoryOf(err))
		}
	})
}
