// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

// Package notifications is the notification store used by the fanout
// consumer and the read API. DuckDB holds the notifications; the unread
// counter is a cache in front of it.
package notifications

import (
	"context"
	"errors"

	"github.com/mediatrack/notifier/internal/logging"
	"github.com/mediatrack/notifier/internal/metrics"
	"github.com/mediatrack/notifier/internal/models"
)

// ErrNilStore is returned by NewService when no store is given.
var ErrNilStore = errors.New("notification store is required")

// Store is the persistence contract, implemented by *database.DB.
type Store interface {
	CreateNotification(ctx context.Context, n models.NewNotification) (*models.Notification, bool, error)
	FindRecentNotifications(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	FindUnreadNotifications(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID int64, limit int) (int, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID int64) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error)
}

// Pusher delivers newly created notifications to connected clients.
type Pusher interface {
	PushNotification(n *models.Notification)
}

// Service wraps a Store with the unread counter cache and live push.
type Service struct {
	store      Store
	counter    UnreadCounter
	pusher     Pusher
	fetchLimit int
}

// Option configures a Service.
type Option func(*Service)

// WithCounter sets the unread counter cache.
func WithCounter(c UnreadCounter) Option {
	return func(s *Service) {
		if c != nil {
			s.counter = c
		}
	}
}

// WithPusher sets the live push target.
func WithPusher(p Pusher) Option {
	return func(s *Service) { s.pusher = p }
}

// NewService returns a Service whose reads are capped at fetchLimit.
func NewService(store Store, fetchLimit int, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if fetchLimit < 1 {
		fetchLimit = 50
	}
	s := &Service{store: store, counter: NopCounter{}, fetchLimit: fetchLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FetchLimit is the cap applied to every read.
func (s *Service) FetchLimit() int {
	return s.fetchLimit
}

// ClampLimit maps a caller-supplied limit into [1, FetchLimit].
func (s *Service) ClampLimit(limit int) int {
	if limit <= 0 || limit > s.fetchLimit {
		return s.fetchLimit
	}
	return limit
}

// Create stores a notification. A duplicate (same recipient, media item and
// rating) returns the existing row with created=false and no error.
func (s *Service) Create(ctx context.Context, n models.NewNotification) (*models.Notification, bool, error) {
	notif, created, err := s.store.CreateNotification(ctx, n)
	if err != nil {
		return nil, false, err
	}
	metrics.RecordNotification(created)
	if !created {
		return notif, false, nil
	}

	s.invalidate(ctx, n.RecipientID)
	if s.pusher != nil {
		s.pusher.PushNotification(notif)
	}
	return notif, true, nil
}

// FindRecent returns the newest notifications of userID.
func (s *Service) FindRecent(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	return s.store.FindRecentNotifications(ctx, userID, s.ClampLimit(limit))
}

// FindUnread returns the newest unread notifications of userID.
func (s *Service) FindUnread(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	return s.store.FindUnreadNotifications(ctx, userID, s.ClampLimit(limit))
}

// CountUnread returns min(unread, limit).
func (s *Service) CountUnread(ctx context.Context, userID int64, limit int) (int, error) {
	limit = s.ClampLimit(limit)

	cached, ok, gen, err := s.counter.Get(ctx, userID)
	fill := err == nil
	if err != nil {
		s.counterFailed(ctx, userID, "get", err)
	} else if ok {
		return min(cached, limit), nil
	}

	// One past the cap tells an exact count apart from a truncated one.
	n, err := s.store.CountUnreadNotifications(ctx, userID, s.fetchLimit+1)
	if err != nil {
		return 0, err
	}
	if fill && n <= s.fetchLimit {
		if err := s.counter.Fill(ctx, userID, n, gen); err != nil {
			s.counterFailed(ctx, userID, "fill", err)
		}
	}
	return min(n, limit), nil
}

// MarkRead marks one notification read.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID int64) error {
	changed, err := s.store.MarkNotificationRead(ctx, userID, notificationID)
	if err != nil {
		return err
	}
	if changed {
		s.invalidate(ctx, userID)
	}
	return nil
}

// MarkAllRead marks every notification of userID read and returns how many
// changed.
func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	changed, err := s.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.invalidate(ctx, userID)
	}
	return changed, nil
}

// invalidate runs after every write that moves the unread count. When it
// fails the stale value lives until the counter TTL.
func (s *Service) invalidate(ctx context.Context, userID int64) {
	if err := s.counter.Invalidate(ctx, userID); err != nil {
		s.counterFailed(ctx, userID, "invalidate", err)
	}
}

func (s *Service) counterFailed(ctx context.Context, userID int64, op string, err error) {
	metrics.CacheErrors.WithLabelValues(counterCacheType, op).Inc()
	logging.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).Str("operation", op).
		Msg("unread counter unavailable, falling back to database")
}
