// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/mediatrack/notifier/internal/database"
	"github.com/mediatrack/notifier/internal/eventprocessor"
	"github.com/mediatrack/notifier/internal/models"
	"github.com/mediatrack/notifier/internal/ratings"
	"github.com/mediatrack/notifier/internal/validation"
)

type fakeRatings struct {
	mu   sync.Mutex
	last ratings.RateRequest
	err  error
}

func (f *fakeRatings) Rate(_ context.Context, req ratings.RateRequest) (*models.Rating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, verr
	}
	return &models.Rating{
		UserID:        req.UserID,
		MediaItemID:   req.MediaItemID,
		Username:      req.Username,
		MediaItemName: req.MediaItemName,
		Value:         req.Rating,
	}, nil
}

type followKey struct{ follower, following int64 }

type fakeFollows struct {
	mu    sync.Mutex
	rows  map[followKey]int
	fails error
}

func newFakeFollows() *fakeFollows {
	return &fakeFollows{rows: make(map[followKey]int)}
}

func (f *fakeFollows) Follow(_ context.Context, followerID, followingID int64, threshold int) (*models.FollowRelationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails != nil {
		return nil, f.fails
	}
	if followerID == followingID {
		return nil, database.ErrSelfFollow
	}
	f.rows[followKey{followerID, followingID}] = threshold
	return &models.FollowRelationship{FollowerID: followerID, FollowingID: followingID, MinimumRatingThreshold: threshold}, nil
}

func (f *fakeFollows) UpdateThreshold(_ context.Context, followerID, followingID int64, threshold int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := followKey{followerID, followingID}
	if _, ok := f.rows[k]; !ok {
		return database.ErrFollowNotFound
	}
	f.rows[k] = threshold
	return nil
}

func (f *fakeFollows) Unfollow(_ context.Context, followerID, followingID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := followKey{followerID, followingID}
	if _, ok := f.rows[k]; !ok {
		return database.ErrFollowNotFound
	}
	delete(f.rows, k)
	return nil
}

func (f *fakeFollows) ListFollowing(_ context.Context, followerID int64) ([]models.FollowRelationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FollowRelationship
	for k, t := range f.rows {
		if k.follower == followerID {
			out = append(out, models.FollowRelationship{FollowerID: k.follower, FollowingID: k.following, MinimumRatingThreshold: t})
		}
	}
	return out, nil
}

func (f *fakeFollows) threshold(follower, following int64) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[followKey{follower, following}]
	return t, ok
}

type fakeNotifications struct {
	mu         sync.Mutex
	fetchLimit int
	items      []models.Notification
	lastLimit  int
	err        error
}

func (f *fakeNotifications) ClampLimit(limit int) int {
	if limit <= 0 || limit > f.fetchLimit {
		return f.fetchLimit
	}
	return limit
}

func (f *fakeNotifications) find(userID int64, limit int, unreadOnly bool) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Notification
	for _, n := range f.items {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotifications) FindRecent(_ context.Context, userID int64, limit int) ([]models.Notification, error) {
	return f.find(userID, limit, false)
}

func (f *fakeNotifications) FindUnread(_ context.Context, userID int64, limit int) ([]models.Notification, error) {
	return f.find(userID, limit, true)
}

func (f *fakeNotifications) CountUnread(_ context.Context, userID int64, limit int) (int, error) {
	list, err := f.find(userID, limit, true)
	return len(list), err
}

func (f *fakeNotifications) MarkRead(_ context.Context, userID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id && f.items[i].UserID == userID {
			f.items[i].IsRead = true
			return nil
		}
	}
	return database.ErrNotificationNotFound
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.items {
		if f.items[i].UserID == userID && !f.items[i].IsRead {
			f.items[i].IsRead = true
			n++
		}
	}
	return n, nil
}

type fakeDLQ struct {
	mu       sync.Mutex
	entries  map[string]*eventprocessor.DLQEntry
	replayed []string
}

func newFakeDLQ(ids ...string) *fakeDLQ {
	d := &fakeDLQ{entries: make(map[string]*eventprocessor.DLQEntry)}
	for _, id := range ids {
		d.entries[id] = &eventprocessor.DLQEntry{ID: id, Topic: "ratings.rated", Reason: "poison"}
	}
	return d
}

func (d *fakeDLQ) List(_ context.Context, limit int) ([]*eventprocessor.DLQEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*eventprocessor.DLQEntry
	for _, e := range d.entries {
		if len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *fakeDLQ) Get(_ context.Context, id string) (*eventprocessor.DLQEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[id]
	if !ok {
		return nil, eventprocessor.ErrDLQEntryNotFound
	}
	return e, nil
}

func (d *fakeDLQ) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[id]; !ok {
		return eventprocessor.ErrDLQEntryNotFound
	}
	delete(d.entries, id)
	return nil
}

func (d *fakeDLQ) Replay(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[id]; !ok {
		return eventprocessor.ErrDLQEntryNotFound
	}
	d.replayed = append(d.replayed, id)
	return nil
}

type fakeHealth struct {
	overall eventprocessor.OverallHealth
}

func (f *fakeHealth) CheckAll(context.Context) eventprocessor.OverallHealth {
	return f.overall
}

type fakeFeed struct {
	mu    sync.Mutex
	users []int64
}

func (f *fakeFeed) ServeUser(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, userID int64) error {
	f.mu.Lock()
	f.users = append(f.users, userID)
	f.mu.Unlock()
	_, err := upgrader.Upgrade(w, r, nil)
	return err
}

type testEnv struct {
	ratings       *fakeRatings
	follows       *fakeFollows
	notifications *fakeNotifications
	dlq           *fakeDLQ
	health        *fakeHealth
	feed          *fakeFeed
	router        http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		ratings:       &fakeRatings{},
		follows:       newFakeFollows(),
		notifications: &fakeNotifications{fetchLimit: 20},
		dlq:           newFakeDLQ("msg-1", "msg-2"),
		health: &fakeHealth{overall: eventprocessor.OverallHealth{
			Healthy: true,
			Status:  eventprocessor.HealthStatusHealthy,
		}},
		feed: &fakeFeed{},
	}
	h, err := NewHandler(HandlerDeps{
		Ratings:       env.ratings,
		Follows:       env.follows,
		Notifications: env.notifications,
		DLQ:           env.dlq,
		Health:        env.health,
		Feed:          env.feed,
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	env.router = NewRouter(h, NewChiMiddleware(cfg))
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// envelope decodes the response envelope with data left raw.
type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	env := decodeEnvelope(t, rec)
	if env.Status != "success" {
		t.Fatalf("status = %q, error = %+v", env.Status, env.Error)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}
