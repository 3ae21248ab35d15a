// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mediatrack/notifier/internal/models"
)

var errStoreDown = errors.New("connection refused")

// fakeFollowers serves a fixed follow graph.
type fakeFollowers struct {
	mu     sync.Mutex
	byUser map[int64][]models.Follower
	err    error
}

func newFakeFollowers() *fakeFollowers {
	return &fakeFollowers{byUser: make(map[int64][]models.Follower)}
}

func (f *fakeFollowers) follow(followerID, followingID int64, threshold int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byUser[followingID] = append(f.byUser[followingID], models.Follower{
		FollowerID:             followerID,
		MinimumRatingThreshold: threshold,
	})
}

func (f *fakeFollowers) FindFollowersOf(_ context.Context, userID int64) ([]models.Follower, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Follower(nil), f.byUser[userID]...), nil
}

type notificationKey struct {
	userID      int64
	mediaItemID int64
	rating      int
}

// fakeNotifier enforces the (user, media item, rating) uniqueness of the
// notifications table. The first failures calls fail.
type fakeNotifier struct {
	mu       sync.Mutex
	calls    int
	failures int
	always   bool
	keys     map[notificationKey]bool
	stored   []models.NewNotification
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{keys: make(map[notificationKey]bool)}
}

func (n *fakeNotifier) Create(_ context.Context, in models.NewNotification) (*models.Notification, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.always || n.calls <= n.failures {
		return nil, false, errStoreDown
	}

	key := notificationKey{in.RecipientID, in.MediaItemID, in.Rating}
	if n.keys[key] {
		return nil, false, nil
	}
	n.keys[key] = true
	n.stored = append(n.stored, in)
	return &models.Notification{
		ID:            int64(len(n.stored)),
		UserID:        in.RecipientID,
		Message:       in.Message,
		MediaItemID:   in.MediaItemID,
		Rating:        in.Rating,
		RatedByUserID: in.RatedByUserID,
		CreatedAt:     time.Now(),
	}, true, nil
}

func (n *fakeNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func (n *fakeNotifier) notifications() []models.NewNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.NewNotification(nil), n.stored...)
}

// fakeStats records recompute requests.
type fakeStats struct {
	mu    sync.Mutex
	items []int64
}

func (s *fakeStats) RecomputeMediaItemStats(_ context.Context, mediaItemID int64) (*models.MediaItemStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, mediaItemID)
	return &models.MediaItemStats{MediaItemID: mediaItemID, RatingCount: 1, AverageRating: 5}, nil
}

func (s *fakeStats) recomputed() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.items...)
}

// memDLQStore is an in-memory DLQStore.
type memDLQStore struct {
	mu      sync.Mutex
	entries map[string]*DLQEntry
	saves   int
}

func newMemDLQStore() *memDLQStore {
	return &memDLQStore{entries: make(map[string]*DLQEntry)}
}

func (s *memDLQStore) Save(_ context.Context, entry *DLQEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if _, ok := s.entries[entry.ID]; ok {
		return false, nil
	}
	cp := *entry
	s.entries[entry.ID] = &cp
	return true, nil
}

func (s *memDLQStore) Get(_ context.Context, id string) (*DLQEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrDLQEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *memDLQStore) List(_ context.Context, limit int) ([]*DLQEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*DLQEntry, 0, len(s.entries))
	for _, e := range s.entries {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeadLetteredAt.After(out[j].DeadLetteredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memDLQStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return ErrDLQEntryNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *memDLQStore) MarkReplayed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrDLQEntryNotFound
	}
	e.ReplayCount++
	e.LastReplayedAt = &at
	return nil
}

func (s *memDLQStore) DeleteExpired(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.entries {
		if e.DeadLetteredAt.Before(olderThan) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

func (s *memDLQStore) Stats(_ context.Context) (DLQStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := DLQStats{TotalEntries: int64(len(s.entries))}
	for _, e := range s.entries {
		if stats.OldestEntry.IsZero() || e.DeadLetteredAt.Before(stats.OldestEntry) {
			stats.OldestEntry = e.DeadLetteredAt
		}
	}
	return stats, nil
}

func (s *memDLQStore) all() []*DLQEntry {
	out, _ := s.List(context.Background(), 1<<20)
	return out
}
